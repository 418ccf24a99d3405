// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gmapsimage

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// ProgressFunc is a function that is used to inform a caller about the progress
// of a called function.
// For example if we retrieve hundreds of tiles we might wish to know how far
// the call is and give feedback to the user.
// The called method calls the progress function after each processed item,
// num is the number of items processed so far.
type ProgressFunc func(num int)

// ProgressIgnore is a ProgressFunc that does nothing.
func ProgressIgnore(num int) {}

func progressMessage(prefix string, num, max, step int) (string, bool) {
	if step == 0 || max == 0 {
		return "", false
	}
	if !(step < 0 || num%step == 0 || num == max) {
		return "", false
	}
	percent := (float64(num) / float64(max)) * 100.0
	if percent > 100.0 {
		percent = 100.0
	}
	if prefix == "" {
		prefix = "Progress"
	}
	return fmt.Sprintf("%s: %d of %d (%.1f%%)", prefix, num, max, percent), true
}

// LoggerProgressFunc is a parameterized ProgressFunc that logs to log.
// The output describes the progress (how many of how many objects processed).
// Log messages may have an addition prefix. max is the total number of elements
// to process and step describes how often to print to the log (for example
// step = 100 every 100 items). The last item is always reported.
func LoggerProgressFunc(prefix string, max, step int) ProgressFunc {
	return func(num int) {
		if msg, ok := progressMessage(prefix, num, max, step); ok {
			log.Info(msg)
		}
	}
}

// StdProgressFunc works as LoggerProgressFunc but writes to w.
func StdProgressFunc(w io.Writer, prefix string, max, step int) ProgressFunc {
	return func(num int) {
		if msg, ok := progressMessage(prefix, num, max, step); ok {
			fmt.Fprintln(w, msg)
		}
	}
}

// ParseDimensions parses a string of the form "AxB" where A and B are positive
// integers.
func ParseDimensions(s string) (int, int, error) {
	first, second, err := ParseDimensionsEmpty(s)
	if err != nil {
		return -1, -1, err
	}
	if first < 0 || second < 0 {
		return -1, -1, errors.Newf("invalid dimension format: %s, expect \"AxB\"", s)
	}
	return first, second, nil
}

// ParseDimensionsEmpty works as ParseDimensions of the form "AxB" but also
// allows A and / or B to be empty. That is "1024x" would be valid as well as
// "x768" and "x". Empty values are returned as -1.
func ParseDimensionsEmpty(s string) (int, int, error) {
	split := strings.Split(s, "x")
	if len(split) != 2 {
		return -1, -1, errors.Newf("invalid dimension format: %s, expect \"AxB\"", s)
	}
	res := [2]int{-1, -1}
	for i, part := range split {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		val, parseErr := strconv.Atoi(part)
		if parseErr != nil {
			return -1, -1, errors.Wrapf(parseErr, "invalid dimension %s", s)
		}
		if val < 0 {
			return -1, -1, errors.Newf("dimensions must be positive, got %d", val)
		}
		res[i] = val
	}
	return res[0], res[1], nil
}

// KeepRatioHeight computes the new height given the original width and height
// s.t. the ratio remains unchanged. The original values must be > 0.
func KeepRatioHeight(originalWidth, originalHeight, width int) int {
	ratio := float64(originalHeight) / float64(originalWidth)
	return int(ratio * float64(width))
}

// KeepRatioWidth computes the new width given the original width and height
// s.t. the ratio remains unchanged. The original values must be > 0.
func KeepRatioWidth(originalWidth, originalHeight, height int) int {
	ratio := float64(originalWidth) / float64(originalHeight)
	return int(ratio * float64(height))
}

// ParseFloats parses each string as a float64.
func ParseFloats(args ...string) ([]float64, error) {
	res := make([]float64, len(args))
	for i, arg := range args {
		val, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid number \"%s\"", arg)
		}
		res[i] = val
	}
	return res, nil
}

// ParseInts parses each string as an int.
func ParseInts(args ...string) ([]int, error) {
	res := make([]int, len(args))
	for i, arg := range args {
		val, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer \"%s\"", arg)
		}
		res[i] = val
	}
	return res, nil
}
