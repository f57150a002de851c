// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"fmt"
	"io"
	"strings"
)

func Example() {
	port, _ := Read(
		context.Background(),
		Default(8080, IntFromString(Env("CRUD_EXAMPLE_UNSET_PORT"))),
	)

	fmt.Println(port)
	// Output:
	// 8080
}

func ExampleUnmarshalJSON() {
	type AppConfig struct {
		Port    int    `json:"port"`
		Env     string `json:"env"`
		Enabled bool   `json:"enabled"`
	}

	appCfgReader := UnmarshalJSON[AppConfig](ReaderOf[io.Reader](strings.NewReader(`{
  "port": 8080,
  "env": "production",
  "enabled": true
}`)))

	appCfg, _ := Read(context.Background(), appCfgReader)

	fmt.Println("port:", appCfg.Port)
	fmt.Println("env:", appCfg.Env)
	fmt.Println("enabled:", appCfg.Enabled)

	// Output:
	// port: 8080
	// env: production
	// enabled: true
}

func ExampleUnmarshalYAML() {
	type AppConfig struct {
		Port    int    `yaml:"port"`
		Env     string `yaml:"env"`
		Enabled bool   `yaml:"enabled"`
	}

	appCfgReader := UnmarshalYAML[AppConfig](ReaderOf[io.Reader](strings.NewReader(`port: 8080
env: production
enabled: true
`)))

	appCfg, _ := Read(context.Background(), appCfgReader)

	fmt.Println("port:", appCfg.Port)
	fmt.Println("env:", appCfg.Env)
	fmt.Println("enabled:", appCfg.Enabled)

	// Output:
	// port: 8080
	// env: production
	// enabled: true
}
