// main.go
//
// Linked project space synchronization service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of spacelink.
// spacelink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// spacelink is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with spacelink.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// linkctl is an operator CLI for the spacelink service: manage domain
// links and run pushes without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/appsync"
	"github.com/localnerve/spacelink/internal/cache"
	"github.com/localnerve/spacelink/internal/config"
	"github.com/localnerve/spacelink/internal/database"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/registry"
	"github.com/localnerve/spacelink/internal/release"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/sync"
)

type env struct {
	cfg *config.Config
	db  *gorm.DB
	reg *registry.Registry
}

func openEnv() (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &env{cfg: cfg, db: db, reg: registry.New(db)}, nil
}

func (e *env) close() {
	database.Close(e.db)
}

func (e *env) engine() *sync.Engine {
	var kv cache.KV
	if e.cfg.RedisAddr != "" {
		kv = cache.NewRedis(e.cfg.RedisAddr, e.cfg.RedisDB)
	} else {
		kv = cache.NewMemory()
	}
	return sync.NewEngine(e.db, kv, e.cfg)
}

func main() {
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Manage spacelink domain links from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(createLinkCmd())
	root.AddCommand(unlinkCmd())
	root.AddCommand(listLinksCmd())
	root.AddCommand(pushCmd())
	root.AddCommand(pullMultimediaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func createLinkCmd() *cobra.Command {
	var remoteURL, remoteUser, remoteKey string

	cmd := &cobra.Command{
		Use:   "create-link <downstream-domain> <upstream-domain>",
		Short: "Link a downstream domain to an upstream master domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			var remoteDetails *registry.RemoteDetails
			if remoteURL != "" {
				remoteDetails = &registry.RemoteDetails{
					URLBase:  remoteURL,
					Username: remoteUser,
					APIKey:   remoteKey,
				}
			}

			link, err := e.reg.LinkDomains(args[0], args[1], remoteDetails)
			if err != nil {
				return err
			}
			fmt.Printf("linked %s -> %s (id %d)\n", link.LinkedDomain, link.MasterDomain, link.LinkID)
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteURL, "remote-url", "", "base URL of the remote upstream installation")
	cmd.Flags().StringVar(&remoteUser, "remote-username", "", "api username on the remote installation")
	cmd.Flags().StringVar(&remoteKey, "remote-api-key", "", "api key on the remote installation")
	return cmd
}

func unlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <downstream-domain>",
		Short: "Deactivate the link of a downstream domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			link, err := e.reg.LinkForDownstream(args[0])
			if err != nil {
				return err
			}
			if link == nil {
				return fmt.Errorf("domain %s has no active link", args[0])
			}
			if err := e.reg.Unlink(link); err != nil {
				return err
			}
			fmt.Printf("unlinked %s from %s\n", link.LinkedDomain, link.MasterDomain)
			return nil
		},
	}
}

func listLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-links <upstream-domain>",
		Short: "List the active downstream links of an upstream domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			links, err := e.reg.LinksForUpstream(args[0])
			if err != nil {
				return err
			}
			for _, link := range links {
				kind := "local"
				if link.IsRemote() {
					kind = "remote"
				}
				fmt.Printf("%s\t%s\tlast pull %s\n", link.LinkedDomain, kind, lastPull(&link))
			}
			return nil
		},
	}
}

func lastPull(link *models.DomainLink) string {
	if link.LastPull == nil {
		return "never"
	}
	return link.LastPull.UTC().Format("2006-01-02 15:04")
}

func pushCmd() *cobra.Command {
	var domains, modelArgs []string
	var buildRelease bool
	var email string

	cmd := &cobra.Command{
		Use:   "push <master-domain>",
		Short: "Push content models to downstream domains",
		Long: `Push content models from a master domain to its downstream domains.

Models are given as TYPE or TYPE=DETAIL_JSON, for example:

  linkctl push my-domain --domain child-a --model flags --model 'app={"app_id":"abc123"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(domains) == 0 {
				return fmt.Errorf("at least one --domain is required")
			}
			specs, err := parseModelArgs(modelArgs)
			if err != nil {
				return err
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			releaser := release.NewReleaser(e.engine(), e.reg, release.NewMailer(e.cfg))
			manager := releaser.Run(context.Background(), release.Request{
				MasterDomain:    args[0],
				Domains:         domains,
				Models:          specs,
				BuildAndRelease: buildRelease,
				UserID:          "linkctl",
				Email:           email,
			})

			for _, domain := range manager.Domains() {
				for _, msg := range manager.SuccessesForDomain(domain) {
					fmt.Printf("%s: %s\n", domain, msg)
				}
				for _, msg := range manager.ErrorsForDomain(domain) {
					fmt.Printf("%s: ERROR %s\n", domain, msg)
				}
			}
			if manager.ErrorDomainCount() > 0 {
				return fmt.Errorf("%d domain(s) had errors", manager.ErrorDomainCount())
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&domains, "domain", nil, "downstream domain to push to (repeatable)")
	cmd.Flags().StringArrayVar(&modelArgs, "model", nil, "model to push, TYPE or TYPE=DETAIL_JSON (repeatable)")
	cmd.Flags().BoolVar(&buildRelease, "build-and-release", false, "build and release downstream apps after pulling")
	cmd.Flags().StringVar(&email, "email", "", "send a summary email to this address")
	return cmd
}

func parseModelArgs(raw []string) ([]sync.ModelSpec, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one --model is required")
	}
	specs := make([]sync.ModelSpec, 0, len(raw))
	for _, arg := range raw {
		name, detailJSON, _ := strings.Cut(arg, "=")
		spec := sync.ModelSpec{Type: sync.ModelType(name)}
		if detailJSON != "" {
			detail, err := sync.DecodeDetail(spec.Type, models.RawJSON([]byte(detailJSON)))
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", name, err)
			}
			spec.Detail = detail
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func pullMultimediaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull-multimedia <downstream-domain> <upstream-app-id>",
		Short: "Re-pull multimedia items that are missing from a linked app",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			link, err := e.reg.LinkForDownstream(args[0])
			if err != nil {
				return err
			}
			if link == nil {
				return fmt.Errorf("domain %s has no active link", args[0])
			}

			src := source.ForLink(e.db, link, e.cfg)
			if err := appsync.PullMissingMultimedia(context.Background(), e.db, link, src, args[1]); err != nil {
				return err
			}
			fmt.Println("multimedia pull complete")
			return nil
		},
	}
}
