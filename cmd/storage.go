package cmd

import (
	"fmt"
	"sort"
	"strings"

	"beatmarket/storage"

	"github.com/spf13/cobra"
)

var (
	storagePrefix string
	storageStats  bool
	storageDelete bool
	storageLimit  int
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the upload bucket",
	Long:  `Lists stored objects, prints bucket statistics by content class, or deletes every object under a prefix.`,
	Example: `  beatmarket storage -p images/
  beatmarket storage -s
  beatmarket storage -p audio/tmp/ -d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()

		store, closeStore, err := openStore(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer closeStore()

		loc := store.Location()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend: %s, bucket: %s, endpoint: %s\n", loc.Backend, loc.Bucket, loc.Endpoint)

		if storageDelete {
			if storagePrefix == "" {
				return fmt.Errorf("refusing to delete without a prefix")
			}
			objects, err := store.List(ctx, storagePrefix, 0)
			if err != nil {
				return err
			}
			for _, obj := range objects {
				if err := store.Remove(ctx, obj.Key); err != nil {
					return fmt.Errorf("remove %s: %w", obj.Key, err)
				}
			}
			fmt.Fprintf(out, "Deleted %d objects under %s\n", len(objects), storagePrefix)
			return nil
		}

		limit := storageLimit
		if storageStats {
			limit = 0
		}
		objects, err := store.List(ctx, storagePrefix, limit)
		if err != nil {
			return err
		}

		if storageStats {
			printStats(cmd, storage.Summarize(objects))
			return nil
		}
		for _, obj := range objects {
			fmt.Fprintf(out, "%-60s %10s  %s  %s\n", obj.Key, storage.FormatSize(obj.Size),
				obj.LastModified.Format("2006-01-02 15:04:05"), obj.ContentType)
		}
		fmt.Fprintf(out, "%d objects\n", len(objects))
		return nil
	},
}

func printStats(cmd *cobra.Command, stats storage.BucketStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Objects:       %d\n", stats.TotalObjects)
	fmt.Fprintf(out, "Total size:    %s\n", storage.FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(out, "Last modified: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}
	classes := make([]string, 0, len(stats.ByClass))
	for c := range stats.ByClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, c := range classes {
		fmt.Fprintf(out, "  %-8s %s\n", strings.ToLower(c)+":", storage.FormatSize(stats.ByClass[c]))
	}
}

func init() {
	storageCmd.Flags().StringVarP(&storagePrefix, "prefix", "p", "", "only objects under this prefix, e.g. images/")
	storageCmd.Flags().BoolVarP(&storageStats, "stats", "s", false, "print bucket statistics")
	storageCmd.Flags().BoolVarP(&storageDelete, "delete", "d", false, "delete every object under --prefix")
	storageCmd.Flags().IntVarP(&storageLimit, "limit", "n", 100, "maximum objects to list (0 for all)")
	rootCmd.AddCommand(storageCmd)
}
