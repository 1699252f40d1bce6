// Copyright 2026 The PropDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var recomputeTenantID string

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute tenant billing status from invoices",
	Long: `Recompute derives each tenant's status and next billing date from its
invoices and persists the changes. With --tenant only that tenant is processed.
The result is printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var result any
		if recomputeTenantID != "" {
			result, err = a.billing.RecomputeTenant(ctx, recomputeTenantID)
		} else {
			result, err = a.billing.RecomputeAll(ctx)
		}
		if err != nil {
			return fmt.Errorf("recompute failed: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	recomputeCmd.Flags().StringVar(&recomputeTenantID, "tenant", "", "recompute a single tenant")
	rootCmd.AddCommand(recomputeCmd)
}
