package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samvad-hq/samvad-fetch/internal/app"
	"github.com/samvad-hq/samvad-fetch/internal/config"
	"github.com/samvad-hq/samvad-fetch/internal/logger"
	"github.com/samvad-hq/samvad-fetch/pkg/fetch"
	"github.com/spf13/cobra"
)

// callFlags are shared by every request subcommand.
type callFlags struct {
	profile string
	baseURL string
	token   string
	headers map[string]string
	strict  bool
}

// runnerFactory builds the runner; tests swap it out.
var runnerFactory = func(cmd *cobra.Command) (*app.Runner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	runner, err := app.NewRunner(cmd.Context(), cfg, log)
	if err != nil {
		_ = logger.Close(log)
		return nil, nil, err
	}
	cleanup := func() {
		if err := runner.Close(); err != nil {
			log.ErrorObj("runner close failed", "error", err.Error())
		}
		_ = logger.Close(log)
	}
	return runner, cleanup, nil
}

func newRootCmd() *cobra.Command {
	flags := &callFlags{}
	root := &cobra.Command{
		Use:           "fetch",
		Short:         "Issue HTTP calls and print the {payload, error} envelope",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.profile, "profile", "p", "", "endpoint profile id")
	pf.StringVar(&flags.baseURL, "base-url", "", "base address, overrides the profile")
	pf.StringVar(&flags.token, "token", "", "bearer token, overrides the profile")
	pf.StringToStringVarP(&flags.headers, "header", "H", nil, "extra header as key=value (repeatable)")
	pf.BoolVar(&flags.strict, "strict", false, "classify by the transport success flag")

	root.AddCommand(
		newCallCmd(flags, fetch.MethodGet, false),
		newCallCmd(flags, fetch.MethodPost, true),
		newCallCmd(flags, fetch.MethodPut, true),
		newCallCmd(flags, fetch.MethodDelete, false),
		newMethodCmd(flags),
		newHistoryCmd(),
		newProfilesCmd(),
	)
	return root
}

func newCallCmd(flags *callFlags, method fetch.Method, withBody bool) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   strings.ToLower(string(method)) + " <path>",
		Short: "Send a " + string(method) + " request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, flags, method, args[0], data)
		},
	}
	if withBody {
		cmd.Flags().StringVarP(&data, "data", "d", "", "JSON payload")
	}
	return cmd
}

// newMethodCmd takes the verb as an argument, for scripts that pick it at runtime.
func newMethodCmd(flags *callFlags) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "call <method> <path>",
		Short: "Send a request with the given method (GET, POST, PUT, DELETE)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := fetch.ParseMethod(args[0])
			if err != nil {
				return err
			}
			if data != "" && (method == fetch.MethodGet || method == fetch.MethodDelete) {
				return fmt.Errorf("--data is not allowed with %s", method)
			}
			return runCall(cmd, flags, method, args[1], data)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON payload (POST and PUT only)")
	return cmd
}

func runCall(cmd *cobra.Command, flags *callFlags, method fetch.Method, path, data string) error {
	call := app.Call{
		Profile:     flags.profile,
		BaseURL:     flags.baseURL,
		Path:        path,
		Method:      method,
		Headers:     flags.headers,
		BearerToken: flags.token,
		Strict:      flags.strict,
	}
	if strings.TrimSpace(data) != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("--data is not valid JSON")
		}
		call.Payload = json.RawMessage(data)
	}

	runner, cleanup, err := runnerFactory(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	env, err := runner.Execute(cmd.Context(), call)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), env)
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cleanup, err := runnerFactory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := runner.History(limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries, 0 for all")
	return cmd
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configured endpoint profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cleanup, err := runnerFactory(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return writeJSON(cmd.OutOrStdout(), runner.Profiles())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
