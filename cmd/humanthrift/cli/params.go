// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagsFromParams returns a [pflag.FlagSet] bound to the tagged fields
// of params, which must point to a struct. It panics when params
// cannot be bound.
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers pflag entries for each tagged field in params.
// params must be a pointer to a struct.
//
// # Struct tags
//
//   - flag:"name" or flag:"name,n": the long flag name and optional
//     single-character shorthand. Fields without a flag tag are skipped.
//   - desc:"help text": the flag's help description.
//   - default:"value": the default value, parsed according to the
//     field's Go type. If omitted, the type's zero value is used.
//
// # Supported field types
//
// string, bool, int, [time.Duration], []string.
//
// Embedded struct fields are bound recursively, so commands share
// common flags by embedding a struct that carries them.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStructFields(value.Elem(), flagSet)
}

func bindStructFields(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	for index := range structValue.NumField() {
		field := structValue.Type().Field(index)
		fieldValue := structValue.Field(index)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStructFields(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}
		tag, tagged := field.Tag.Lookup("flag")
		if !tagged || tag == "" {
			continue
		}
		if !fieldValue.CanAddr() {
			return fmt.Errorf("field %s: not addressable", field.Name)
		}

		name, shorthand, _ := strings.Cut(tag, ",")
		if err := bindField(fieldValue, flagSet, name, shorthand, field.Tag.Get("desc"), field.Tag.Get("default")); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

// bindField registers one flag for fieldValue, parsing defaultText
// with the parser for the field's type.
func bindField(fieldValue reflect.Value, flagSet *pflag.FlagSet, name, shorthand, description, defaultText string) error {
	var err error
	switch target := fieldValue.Addr().Interface().(type) {
	case *string:
		flagSet.StringVarP(target, name, shorthand, defaultText, description)
	case *bool:
		var value bool
		if value, err = parseDefault(defaultText, strconv.ParseBool); err == nil {
			flagSet.BoolVarP(target, name, shorthand, value, description)
		}
	case *int:
		var value int
		if value, err = parseDefault(defaultText, strconv.Atoi); err == nil {
			flagSet.IntVarP(target, name, shorthand, value, description)
		}
	case *time.Duration:
		var value time.Duration
		if value, err = parseDefault(defaultText, time.ParseDuration); err == nil {
			flagSet.DurationVarP(target, name, shorthand, value, description)
		}
	case *[]string:
		value, _ := parseDefault(defaultText, func(text string) ([]string, error) {
			return strings.Split(text, ","), nil
		})
		flagSet.StringSliceVarP(target, name, shorthand, value, description)
	default:
		return fmt.Errorf("unsupported type %s for flag --%s", fieldValue.Type(), name)
	}
	if err != nil {
		return fmt.Errorf("default for --%s: %w", name, err)
	}
	return nil
}

// parseDefault parses a default tag value; an empty tag is the zero
// value.
func parseDefault[T any](text string, parse func(string) (T, error)) (T, error) {
	var zero T
	if text == "" {
		return zero, nil
	}
	return parse(text)
}
