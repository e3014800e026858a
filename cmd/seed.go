/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudpanel/authcore/config"
	"github.com/cloudpanel/authcore/internal/fixtures"
	"github.com/cloudpanel/authcore/internal/server"
	"github.com/cloudpanel/authcore/internal/storage"
)

var (
	seedFile   string
	seedUpload bool
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Validate a fixture file, or upload it to the fixtures source",
	Long: `Loads demo users into a throwaway core and prints the result, so a
fixture document can be checked before the server loads it at start-up.

	authcore seed --file fixtures/users.yaml
	authcore seed --file fixtures/users.yaml --upload

Without --file the document is read from FIXTURES_SOURCE/FIXTURES_KEY.
With --upload the file is written to FIXTURES_SOURCE under FIXTURES_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.LoadConfig()
		logger := newLogger(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		var data []byte
		if seedFile != "" {
			raw, err := os.ReadFile(seedFile)
			if err != nil {
				return err
			}
			data = raw
		} else {
			if cfg.Fixtures.Source == config.FixturesNone {
				return fmt.Errorf("--file or FIXTURES_SOURCE is required")
			}
			src, err := storage.New(ctx, cfg.Fixtures)
			if err != nil {
				return err
			}
			if data, err = src.Read(ctx, cfg.Fixtures.Key); err != nil {
				return err
			}
		}

		parsed, err := fixtures.Parse(data)
		if err != nil {
			return err
		}

		authCfg := cfg.Auth
		if authCfg.JWTSecret == "" {
			authCfg.JWTSecret = ephemeralSecret()
		}
		core, err := server.NewCore(authCfg, logger, nil, nil)
		if err != nil {
			return err
		}
		result, err := fixtures.NewLoader(core.Auth, core.UserSvc, logger).Load(ctx, parsed)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, user := range result.Created {
			fmt.Fprintf(out, "created\t%s\t%s\t%s\n", user.Email, user.Role, user.Name)
		}
		for _, email := range result.Skipped {
			fmt.Fprintf(out, "skipped\t%s\n", email)
		}

		if !seedUpload {
			return nil
		}
		if seedFile == "" {
			return fmt.Errorf("--upload requires --file")
		}
		if cfg.Fixtures.Source == config.FixturesNone {
			return fmt.Errorf("--upload requires FIXTURES_SOURCE")
		}
		dst, err := storage.New(ctx, cfg.Fixtures)
		if err != nil {
			return err
		}
		if err := dst.Write(ctx, cfg.Fixtures.Key, data, "application/yaml"); err != nil {
			return err
		}
		fmt.Fprintf(out, "uploaded\t%s/%s\n", dst.Bucket(), cfg.Fixtures.Key)
		return nil
	},
}

func ephemeralSecret() string {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "local fixture document")
	seedCmd.Flags().BoolVar(&seedUpload, "upload", false, "write the file to the configured fixtures source")
}
