package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raysh454/cyra/internal/app"
	"github.com/raysh454/cyra/internal/fixtures"
	"github.com/raysh454/cyra/internal/session"
)

func newScanCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan and print the verdict",
	}
	cmd.AddCommand(newScanLinkCmd(e), newScanFileCmd(e), newScanImageCmd(e), newScanAppsCmd(e))
	return cmd
}

func newScanLinkCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "link <url>",
		Short: "Check a URL for phishing, malware or scams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runScan(cmd.Context(), app.SurfaceLink, func(c *app.Companion) (string, error) {
				id, info, err := c.ScanLink(cmd.Context(), args[0])
				if err != nil {
					return "", err
				}
				printLinkInfo(e.out, info)
				return id, nil
			})
		},
	}
}

func newScanFileCmd(e *env) *cobra.Command {
	var fileType string
	var withContent bool
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Predict what a file does from its name and type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			var content []byte
			if withContent {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				content = data
			}
			return e.runScan(cmd.Context(), app.SurfaceFile, func(c *app.Companion) (string, error) {
				return c.ScanFile(cmd.Context(), filepath.Base(path), fileType, content)
			})
		},
	}
	cmd.Flags().StringVar(&fileType, "type", "", "MIME type of the file")
	cmd.Flags().BoolVar(&withContent, "content", false, "Send the file bytes as well (images only)")
	return cmd
}

func newScanImageCmd(e *env) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "image <path>",
		Short: "Check a screenshot for scams or manipulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			return e.runScan(cmd.Context(), app.SurfaceImage, func(c *app.Companion) (string, error) {
				return c.ScanImage(cmd.Context(), data, mimeType)
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (detected when empty)")
	return cmd
}

func newScanAppsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "Review the installed-app activity list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range fixtures.InstalledApps() {
				printApp(e.out, a)
			}
			return e.runScan(cmd.Context(), app.SurfaceAppActivity, func(c *app.Companion) (string, error) {
				return c.ScanAppActivity(cmd.Context())
			})
		},
	}
}

func newCheckCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the one-click device check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runScan(cmd.Context(), app.SurfaceOneClick, func(c *app.Companion) (string, error) {
				return c.OneClickCheck(cmd.Context())
			})
		},
	}
}

// runScan builds a companion, submits through submit and waits for the
// session to settle on that request.
func (e *env) runScan(ctx context.Context, surface string, submit func(*app.Companion) (string, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, _, _, err := e.newCompanion(true)
	if err != nil {
		return err
	}
	defer c.Close()

	sess, err := c.Session(surface)
	if err != nil {
		return err
	}
	// Subscribe first so the terminal state cannot slip past.
	states, cancel := sess.Subscribe()
	defer cancel()

	id, err := submit(c)
	if err != nil {
		return err
	}
	st, err := waitTerminal(ctx, sess, states, id)
	if err != nil {
		return err
	}
	if st.Phase == session.PhaseFailed {
		printFailure(e.out, st)
		return fmt.Errorf("scan failed: %s", st.ErrorKind)
	}
	printOutcome(e.out, st.Outcome)
	return nil
}

func waitTerminal(ctx context.Context, sess *session.Session, states <-chan session.State, id string) (session.State, error) {
	// The subscription may have dropped the update under load.
	if st := sess.State(); st.RequestID == id && st.Terminal() {
		return st, nil
	}
	for {
		select {
		case <-ctx.Done():
			return session.State{}, ctx.Err()
		case st, ok := <-states:
			if !ok {
				return session.State{}, errors.New("session closed before the scan finished")
			}
			if st.RequestID == id && st.Terminal() {
				return st, nil
			}
		}
	}
}
