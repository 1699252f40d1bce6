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
	"fmt"
	"time"

	"github.com/propdesk/propdesk/internal/auth"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a user",
	Example: `  propdesk token --subject 0194f1c2-7a3e-7c1d-9b1e-3f2a1d4c5e6f --role ADMIN
  propdesk token --subject ops --role SUPER_ADMIN --ttl 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role := auth.Role(tokenRole)
		if !role.IsValid() {
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}

		token, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Issue(tokenSubject, role, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "user id placed in the sub claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleBroker), "BROKER, MANAGER, ADMIN or SUPER_ADMIN")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}
