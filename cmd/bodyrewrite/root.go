package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kava-labs/body-rewrite-proxy/config"
	"github.com/kava-labs/body-rewrite-proxy/logging"
	"github.com/kava-labs/body-rewrite-proxy/rewrite"
)

type rootOptions struct {
	productID   string
	productName string
	logLevel    string
	strict      bool
}

func newRootCmd() *cobra.Command {
	opts := rootOptions{}

	cmd := &cobra.Command{
		Use:   "bodyrewrite [file]",
		Short: "Rewrite the product ordered by a product authorization request body",
		Long: `Reads a request body from file (or stdin when no file is given), replaces
PRODUCT_ID and PRODUCT_NAME with the target product and writes the body
to forward to stdout. Bodies that are not valid JSON are written back
unchanged unless --strict is set.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.productID, "product-id", rewrite.DefaultTargetProductID, "product code bodies are rewritten to")
	cmd.Flags().StringVar(&opts.productName, "product-name", rewrite.DefaultTargetProductName, "product name bodies are rewritten to")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", config.DEFAULT_LOG_LEVEL, fmt.Sprintf("log level, one of %v", config.ValidLogLevels))
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail instead of passing through bodies that are not valid JSON")

	return cmd
}

func runRewrite(cmd *cobra.Command, args []string, opts rootOptions) error {
	logger, err := logging.NewWithWriter(opts.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if opts.productID == "" {
		return fmt.Errorf("--product-id must not be empty")
	}

	rawBody, err := readBody(cmd, args)
	if err != nil {
		return err
	}

	rewriter := rewrite.New(rewrite.Config{
		TargetProductID:   opts.productID,
		TargetProductName: opts.productName,
	}, &logger)

	result := rewriter.Rewrite(rawBody)

	body := rawBody
	if result.IsPassThrough() {
		if opts.strict {
			return result.Err
		}
	} else {
		body = result.Body
	}

	_, err = cmd.OutOrStdout().Write(body)

	return err
}

func readBody(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(cmd.InOrStdin())
	}

	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("can't read body from %s: %w", args[0], err)
	}

	return body, nil
}
