package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"nicetab/api/internal/app"
	"nicetab/api/internal/search"
)

func tagsCmd(open opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with their group and tab counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			view, err := a.Service.Tags(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, view)
			}
			for _, tag := range view.TagList {
				tabs := 0
				for _, g := range tag.GroupList {
					tabs += len(g.TabList)
				}
				star := " "
				if tag.IsStarred {
					star = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\t%d groups\t%d tabs\n", star, tag.TagID, tag.TagName, len(tag.GroupList), tabs)
			}
			c := view.CountInfo
			fmt.Fprintf(out, "total: %d tags, %d groups, %d tabs\n", c.TagCount, c.GroupCount, c.TabCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full tree as JSON")
	return cmd
}

func importCmd(open opener) *cobra.Command {
	var format, mode string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import tabs from a NiceTab, OneTab or KepTab file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			count, err := a.Service.Import(cmd.Context(), format, mode, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported: %d tags, %d groups, %d tabs\n", count.TagCount, count.GroupCount, count.TabCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "nicetab", "nicetab, onetab or keptab")
	cmd.Flags().StringVar(&mode, "mode", "merge", "override, append or merge")
	return cmd
}

func exportCmd(open opener) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			content, err := a.Service.Export(cmd.Context(), format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), content)
				return err
			}
			return os.WriteFile(output, []byte(content), 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "format", "nicetab", "nicetab, onetab or keptab")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func captureCmd(open opener) *cobra.Command {
	var newGroup bool
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Save the tabs open in the connected browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			count, err := a.Service.Capture(cmd.Context(), newGroup)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "now holding %d tabs\n", count.TabCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&newGroup, "new-group", false, "Always file loose tabs into a new group")
	return cmd
}

func recycleCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recycle",
		Short: "Inspect and manage the recycle bin",
	}
	run := func(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			return fn(cmd, a, args)
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List recycled tags",
			RunE: run(func(cmd *cobra.Command, a *app.App, _ []string) error {
				view, err := a.Service.RecycleBin(cmd.Context())
				if err != nil {
					return err
				}
				for _, tag := range view.TagList {
					for _, g := range tag.GroupList {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%d tabs\n", tag.TagID, tag.TagName, g.GroupID, g.GroupName, len(g.TabList))
					}
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "recover [tagId...]",
			Short: "Recover tags, or everything when no id is given",
			RunE: run(func(cmd *cobra.Command, a *app.App, args []string) error {
				var command app.Command = app.RecoverAll{}
				if len(args) > 0 {
					command = app.RecoverTags{TagIDs: args}
				}
				_, err := a.Service.Execute(cmd.Context(), command)
				return err
			}),
		},
		&cobra.Command{
			Use:   "recover-group <tagId> <groupId>",
			Short: "Recover one group",
			Args:  cobra.ExactArgs(2),
			RunE: run(func(cmd *cobra.Command, a *app.App, args []string) error {
				_, err := a.Service.Execute(cmd.Context(), app.RecoverTabGroup{TagID: args[0], GroupID: args[1]})
				return err
			}),
		},
		&cobra.Command{
			Use:   "purge <tagId> [groupId]",
			Short: "Delete a recycled tag or group for good",
			Args:  cobra.RangeArgs(1, 2),
			RunE: run(func(cmd *cobra.Command, a *app.App, args []string) error {
				var command app.Command = app.PurgeTag{TagID: args[0]}
				if len(args) == 2 {
					command = app.PurgeTabGroup{TagID: args[0], GroupID: args[1]}
				}
				_, err := a.Service.Execute(cmd.Context(), command)
				return err
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the recycle bin",
			RunE: run(func(cmd *cobra.Command, a *app.App, _ []string) error {
				_, err := a.Service.Execute(cmd.Context(), app.ClearRecycleBin{})
				return err
			}),
		},
	)
	return cmd
}

func syncCmd(open opener) *cobra.Command {
	var syncType string
	cmd := &cobra.Command{
		Use:   "sync [target]",
		Short: "Sync with a gist or WebDAV target, or list targets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, target := range a.Service.SyncTargets() {
					fmt.Fprintf(out, "%s\tauto=%t\n", target.ID, target.AutoSync)
				}
				return nil
			}
			result, started, err := a.Service.Sync(cmd.Context(), args[0], syncType)
			if err != nil {
				return err
			}
			if !started {
				return fmt.Errorf("sync already running on %s", args[0])
			}
			return printJSON(out, result)
		},
	}
	cmd.Flags().StringVar(&syncType, "type", "auto", "auto, manual-push-merge, manual-pull-merge, manual-push-force or manual-pull-force")
	return cmd
}

func historyCmd(open opener) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List tree snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			commits, err := a.Service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, c := range commits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.Hash, c.CreatedAt.Format("2006-01-02 15:04"), c.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of snapshots to show")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "snapshot [message]",
			Short: "Record the current tree",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, done, err := open(cmd)
				if err != nil {
					return err
				}
				defer done()
				hash, err := a.Service.Snapshot(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore <hash>",
			Short: "Replace the tree with a snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, done, err := open(cmd)
				if err != nil {
					return err
				}
				defer done()
				count, err := a.Service.RestoreSnapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %d tabs\n", count.TabCount)
				return nil
			},
		},
	)
	return cmd
}

func searchCmd(open opener) *cobra.Command {
	var tagID string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search saved tabs by title or url",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd)
			if err != nil {
				return err
			}
			defer done()
			res := a.Service.Search(search.Query{Text: strings.Join(args, " "), FilterTagID: tagID, Limit: limit})
			for _, hit := range res.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", hit.TagName, hit.GroupName, hit.Title, hit.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tagID, "tag", "", "Only search inside this tag")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash to use as api_key_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}
