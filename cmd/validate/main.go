package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/mask-engine/pkg/content"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	catalog        string
	policy         string
	sockets        int
	warningsFail   bool
	maxConcurrency int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "validate [flags] <track file...>",
		Short: "Validate mask stage tracks and fragment catalogs",
		Long: `Validates track files (.json, .yaml, .yml) with strict decoding.

With --catalog, rewards are checked against the catalog's fragments and each
stage's identity is checked against the catalog's identity rules. Directories
are expanded to every content file beneath them.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.catalog, "catalog", "c", "", "Catalog file to check rewards and identities against")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Identity priority policy override (declaration, highest_threshold, highest_count)")
	cmd.Flags().IntVar(&opts.sockets, "sockets", mask.DefaultSocketCount, "Socket count used for the reachability warning (0 disables)")
	cmd.Flags().BoolVar(&opts.warningsFail, "warnings-as-errors", false, "Fail on warnings")
	cmd.Flags().IntVarP(&opts.maxConcurrency, "jobs", "j", 4, "Files validated in parallel")

	return cmd
}

func run(ctx context.Context, opts *options, args []string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var override mask.PriorityPolicy
	if opts.policy != "" {
		p, err := mask.ParsePolicy(opts.policy)
		if err != nil {
			return err
		}
		override = p
	}

	v := &TrackValidator{Sockets: opts.sockets}
	resolver, err := mask.NewResolver(mask.DefaultThresholds(), override)
	if err != nil {
		return err
	}

	failed := false
	if opts.catalog != "" {
		fmt.Fprintf(stdout, "Validating %s...\n", opts.catalog)
		c, res := ValidateCatalogFile(opts.catalog)
		report(stdout, stderr, res, opts.warningsFail)
		if !res.OK(opts.warningsFail) {
			failed = true
		}
		if c != nil {
			if resolver, err = c.Resolver(override); err != nil {
				return err
			}
			v.Catalog = c
		}
	}
	v.Resolver = resolver

	files, err := expand(args)
	if err != nil {
		fmt.Fprintf(stderr, "Validation failed: %v\n", err)
		return err
	}

	results := make([]Result, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.maxConcurrency, 1))
	for i, f := range files {
		g.Go(func() error {
			results[i] = v.ValidateFile(f)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		fmt.Fprintf(stdout, "Validating %s...\n", res.Path)
		report(stdout, stderr, res, opts.warningsFail)
		if !res.OK(opts.warningsFail) {
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintf(stdout, "%d track file(s) valid!\n", len(files))
	return nil
}

func report(stdout, stderr io.Writer, res Result, warningsFail bool) {
	if len(res.Warnings) > 0 {
		fmt.Fprintf(stdout, "warnings in %s:\n%s\n", res.Path, strings.Join(res.Warnings, "\n"))
	}
	if !res.OK(warningsFail) {
		fmt.Fprintf(stderr, "Validation failed for %s\n", res.Path)
	}
	if len(res.Errors) > 0 {
		fmt.Fprintf(stderr, "validation errors in %s:\n%s\n", res.Path, strings.Join(res.Errors, "\n"))
	}
}

// expand replaces directory arguments with the content files beneath them.
func expand(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ferr := content.FormatOf(path); ferr == nil {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}
	return files, nil
}
