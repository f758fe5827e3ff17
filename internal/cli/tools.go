package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/cyra/internal/app"
	"github.com/raysh454/cyra/internal/secret"
)

func newKeygenCmd(e *env) *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n := secret.ClampLength(length); n != length {
				fmt.Fprintf(e.err, "length %d out of range, using %d\n", length, n)
				length = n
			}
			s, err := secret.Generate(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, s)
			return nil
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", secret.DefaultLength,
		fmt.Sprintf("Secret length (%d-%d)", secret.MinLength, secret.MaxLength))
	return cmd
}

func newTipsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "tips",
		Short: "Ask the analyzer for device safety tips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, _, err := e.newCompanion(true)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			tips, err := c.SafetyTips(ctx)
			if err != nil {
				return err
			}
			colorCyan.Fprintln(e.out, tips.Title)
			for _, t := range tips.Tips {
				if t.Urgent {
					colorRed.Fprintf(e.out, "  ! %s\n", t.Text)
					continue
				}
				fmt.Fprintf(e.out, "  - %s\n", t.Text)
			}
			return nil
		},
	}
}

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(e.out, "cyra %s\n", app.Version)
		},
	}
}
