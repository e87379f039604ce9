// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance Suggest accepts.
const maxSuggestDistance = 3

// Suggest returns the candidate closest to unknown by edit distance,
// or "" when none is within three edits. Ties go to the earliest
// candidate.
func Suggest(unknown string, candidates []string) string {
	best := ""
	bestDistance := maxSuggestDistance + 1
	for _, candidate := range candidates {
		if distance := levenshtein(unknown, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, 0, len(commands))
	for _, command := range commands {
		names = append(names, command.Name)
	}
	return Suggest(unknown, names)
}

// suggestFlag finds the first flag in args that flagSet does not
// define and returns the closest defined flag as "--name", or "".
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if arg == "--" {
			return ""
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flagSet.Lookup(name) != nil || (len(name) == 1 && flagSet.ShorthandLookup(name) != nil) {
			continue
		}

		var defined []string
		flagSet.VisitAll(func(flag *pflag.Flag) { defined = append(defined, flag.Name) })
		if best := Suggest(name, defined); best != "" {
			return "--" + best
		}
		return ""
	}
	return ""
}

// levenshtein is the edit distance between a and b, counted in runes.
func levenshtein(a, b string) int {
	source, target := []rune(a), []rune(b)
	if len(source) < len(target) {
		source, target = target, source
	}
	row := make([]int, len(target)+1)
	for j := range row {
		row[j] = j
	}
	for i, sourceRune := range source {
		diagonal := row[0]
		row[0] = i + 1
		for j, targetRune := range target {
			above := row[j+1]
			cost := 1
			if sourceRune == targetRune {
				cost = 0
			}
			row[j+1] = min(above+1, row[j]+1, diagonal+cost)
			diagonal = above
		}
	}
	return row[len(target)]
}
