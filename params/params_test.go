// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package params

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParams_Int(t *testing.T) {
	t.Run("will return the default", func(t *testing.T) {
		t.Run("if the parameter is absent", func(t *testing.T) {
			n, err := Params{}.Int("count", 10)
			require.NoError(t, err)
			require.Equal(t, 10, n)
		})
	})

	t.Run("will parse strings", func(t *testing.T) {
		n, err := Params{"count": "-1"}.Int("count", 10)
		require.NoError(t, err)
		require.Equal(t, -1, n)
	})

	t.Run("will accept json numbers", func(t *testing.T) {
		n, err := Params{"page": float64(3)}.Int("page", 1)
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("will return an InvalidParamError", func(t *testing.T) {
		t.Run("if the value is not a number", func(t *testing.T) {
			_, err := Params{"page": "first"}.Int("page", 1)

			var ierr InvalidParamError
			require.ErrorAs(t, err, &ierr)
			require.Equal(t, "page", ierr.Name)
		})
	})
}

func TestParams_List(t *testing.T) {
	t.Run("will split comma separated values", func(t *testing.T) {
		require.Equal(t, []string{"a", "b", "c"}, Params{"id": "a, b,,c"}.List("id"))
	})

	t.Run("will split every value of a repeated parameter", func(t *testing.T) {
		require.Equal(t, []string{"a", "b", "c"}, Params{"id": []string{"a,b", "c"}}.List("id"))
	})

	t.Run("will return nil if the parameter is absent", func(t *testing.T) {
		require.Nil(t, Params{}.List("id"))
	})
}

func TestParams_Object(t *testing.T) {
	t.Run("will decode json strings", func(t *testing.T) {
		m, err := Params{"filter": `{"name":"ada"}`}.Object("filter")
		require.NoError(t, err)
		require.Equal(t, map[string]any{"name": "ada"}, m)
	})

	t.Run("will return maps unchanged", func(t *testing.T) {
		m, err := Params{"filter": map[string]any{"a": 1}}.Object("filter")
		require.NoError(t, err)
		require.Equal(t, map[string]any{"a": 1}, m)
	})

	t.Run("will return an empty map if the parameter is absent", func(t *testing.T) {
		m, err := Params{}.Object("filter")
		require.NoError(t, err)
		require.NotNil(t, m)
		require.Empty(t, m)
	})

	t.Run("will return an InvalidParamError", func(t *testing.T) {
		t.Run("if the string is not a json object", func(t *testing.T) {
			_, err := Params{"filter": "[1,2]"}.Object("filter")

			var ierr InvalidParamError
			require.ErrorAs(t, err, &ierr)
		})
	})
}

func TestParams_RequiredString(t *testing.T) {
	t.Run("will return a MissingParamError", func(t *testing.T) {
		t.Run("if the parameter is absent", func(t *testing.T) {
			_, err := Params{"id": ""}.RequiredString("id")

			var merr MissingParamError
			require.ErrorAs(t, err, &merr)
			require.Equal(t, "id", merr.Name)
		})
	})
}
