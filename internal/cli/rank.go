package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/ranking"
)

type rankedItem struct {
	ID     string    `json:"id"`
	KindID string    `json:"kind_id"`
	Keys   []float64 `json:"keys"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the ranked order of an inventory without changing it",
		Run:   runRank,
	}

	cmd.Flags().StringP("inventory", "i", "-", "Inventory snapshot (- for stdin)")
	cmd.Flags().StringSlice("traders", nil, "Trader ids to refresh supply data for")
	cmd.Flags().Bool("keys", false, "Include the computed sort keys")

	RootCmd.AddCommand(cmd)
}

func runRank(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("inventory")
	traders, _ := cmd.Flags().GetStringSlice("traders")
	withKeys, _ := cmd.Flags().GetBool("keys")

	ctx := cmd.Context()
	sess := openSession(ctx, path)
	defer sess.Close()

	if len(traders) > 0 {
		if n, err := sess.mgr.RefreshTraders(ctx, traders); err != nil {
			logger.Warn("trader refresh incomplete", "refreshed", n, "error", err)
		}
	}
	sess.mgr.RequestValuationRefresh(ctx, sess.inv.Items())
	sess.mgr.Wait()

	rc := cfg.Sorting.Ranking()
	tax := cfg.Sorting.Taxonomy()
	view := sess.mgr.View()

	out := make(map[string][]rankedItem, len(sess.inv.Grids))
	for _, g := range sess.inv.Grids {
		items := g.Items()
		gc := rc.For(items)
		ranked := ranking.Rank(items, gc, view, tax)
		rows := make([]rankedItem, len(ranked))
		for i, it := range ranked {
			rows[i] = rankedItem{ID: it.ID(), KindID: it.KindID()}
			if withKeys {
				rows[i].Keys = ranking.Keys(it, gc, view, tax)
			}
		}
		out[g.ID()] = rows
	}

	if textOutput() {
		for _, g := range sess.inv.Grids {
			fmt.Printf("%s:\n", g.ID())
			for i, r := range out[g.ID()] {
				fmt.Printf("  %3d. %-24s %s\n", i+1, r.ID, r.KindID)
			}
		}
		return
	}
	printJSON(out)
}
