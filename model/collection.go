// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize returns the default collection name of a model: its name lower
// cased and in plural form.
func Pluralize(name string) string {
	if name == "" {
		return ""
	}
	return inflection.Plural(strings.ToLower(name))
}
