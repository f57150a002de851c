// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command crudsvc serves REST CRUD endpoints for the models defined in
// MODELS_FILE.
package main

import (
	"context"
	"os"

	"github.com/z5labs/crud"
	"github.com/z5labs/crud/app"
	"github.com/z5labs/crud/internal/service"
)

func main() {
	err := app.Run(context.Background(), service.Build(service.ConfigFromEnv()))
	if err != nil {
		app.LogError(crud.Logger("crudsvc"), err)
		os.Exit(1)
	}
}
