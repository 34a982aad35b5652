package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/wI2L/jsondiff"

	"github.com/carlo-ubqty/araw-sub000/modules/ccet/snapshot"
	"github.com/carlo-ubqty/araw-sub000/pkg/blob"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and compare stored snapshots",
	}
	cmd.AddCommand(newSnapshotListCmd(a))
	cmd.AddCommand(newSnapshotDiffCmd(a))
	cmd.AddCommand(newSnapshotPatchCmd(a))
	return cmd
}

func newSnapshotListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List stored snapshots",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := "snapshots/"
			if len(args) == 1 {
				prefix = args[0]
			}
			return runSnapshotList(cmd.Context(), a, prefix)
		},
	}
}

func runSnapshotList(ctx context.Context, a *app, prefix string) error {
	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	if a.opts.format == "json" {
		if infos == nil {
			infos = []blob.Info{}
		}
		return writeJSONLine(a.out, infos)
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(a.out, "%s  %8d bytes  %s\n",
			info.LastModified.UTC().Format("2006-01-02 15:04:05"), info.Size, info.Key); err != nil {
			return errors.Wrap(err, "write snapshot list")
		}
	}
	return nil
}

func newSnapshotDiffCmd(a *app) *cobra.Command {
	var patchOut string
	cmd := &cobra.Command{
		Use:   "diff <old-key> <new-key>",
		Short: "Show what changed between two snapshots as a JSON patch",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotDiff(cmd.Context(), a, args[0], args[1], patchOut)
		},
	}
	cmd.Flags().StringVar(&patchOut, "patch-out", "", "Also write the RFC 6902 patch to this file")
	return cmd
}

func runSnapshotDiff(ctx context.Context, a *app, oldKey, newKey, patchOut string) error {
	before, err := a.readSnapshot(ctx, oldKey)
	if err != nil {
		return err
	}
	after, err := a.readSnapshot(ctx, newKey)
	if err != nil {
		return err
	}
	d, err := snapshot.Compare(before, after)
	if err != nil {
		return err
	}
	if patchOut != "" {
		patch := d.Patch
		if patch == nil {
			patch = jsondiff.Patch{}
		}
		if err := writeJSONFile(patchOut, patch); err != nil {
			return err
		}
	}

	if a.opts.format == "json" {
		return writeJSONLine(a.out, d)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s: %d added, %d removed, %d changed\n",
		oldKey, newKey, len(d.Added), len(d.Removed), len(d.Changed))
	for _, k := range d.Added {
		fmt.Fprintf(&b, "  + %s\n", k)
	}
	for _, k := range d.Removed {
		fmt.Fprintf(&b, "  - %s\n", k)
	}
	for _, k := range d.Changed {
		fmt.Fprintf(&b, "  ~ %s\n", k)
	}
	if _, err := a.out.Write([]byte(b.String())); err != nil {
		return errors.Wrap(err, "write diff")
	}
	return nil
}

func newSnapshotPatchCmd(a *app) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "patch <base-key> <patch-file>",
		Short: "Apply a reviewed JSON patch to a snapshot and store the result",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotPatch(cmd.Context(), a, args[0], args[1], key)
		},
	}
	cmd.Flags().StringVar(&key, "snapshot", "", "Key of the patched snapshot (default: snapshots/ccet_<timestamp>_<run id>.json)")
	return cmd
}

func runSnapshotPatch(ctx context.Context, a *app, baseKey, patchFile, key string) error {
	base, err := a.readSnapshot(ctx, baseKey)
	if err != nil {
		return err
	}
	patch, err := os.ReadFile(patchFile)
	if err != nil {
		return withCode(exitInput, errors.Wrapf(err, "read %s", patchFile))
	}
	records, err := snapshot.Apply(base, patch)
	if err != nil {
		return withCode(exitInput, err)
	}
	written, err := a.writeSnapshot(ctx, key, records)
	if err != nil {
		return err
	}

	if a.opts.format == "json" {
		return writeJSONLine(a.out, map[string]any{"base": baseKey, "snapshotKey": written, "records": len(records)})
	}
	_, err = fmt.Fprintf(a.out, "%s + %s -> %s (%d records)\n", baseKey, filepath.Base(patchFile), written, len(records))
	return errors.Wrap(err, "write patch summary")
}

func writeJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "json marshal")
	}
	return errors.Wrapf(os.WriteFile(path, b, 0o644), "write %s", path)
}
