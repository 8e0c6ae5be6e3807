package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/manager"
	"github.com/rcliao/stash-manager/internal/model"
	"github.com/rcliao/stash-manager/internal/ranking"
)

type gridOrder struct {
	GridID string   `json:"grid_id"`
	Items  []string `json:"items"`
}

type sortOutput struct {
	Result manager.Result `json:"result"`
	Order  []gridOrder    `json:"order"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Fold, merge and rank an inventory snapshot",
		Long:  "Runs the full sort: starts a price refresh, folds and merges as configured, then prints the ranked order of every grid.",
		Run:   runSort,
	}

	addInventoryFlags(cmd)
	cmd.Flags().StringSlice("traders", nil, "Trader ids to refresh supply data for")
	cmd.Flags().String("by", "", "Quick sort by one criterion, descending: trader_value or weight")

	RootCmd.AddCommand(cmd)
}

func addInventoryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("inventory", "i", "-", "Inventory snapshot (- for stdin)")
	cmd.Flags().Bool("simulate", false, "Plan transactions without applying them")
	cmd.Flags().StringP("out", "o", "", "Write the resulting snapshot here (- for stdout)")
}

func runSort(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("inventory")
	simulate, _ := cmd.Flags().GetBool("simulate")
	out, _ := cmd.Flags().GetString("out")
	traders, _ := cmd.Flags().GetStringSlice("traders")
	by, _ := cmd.Flags().GetString("by")

	var quick *ranking.Key
	if by != "" {
		k, err := parseQuickKey(by)
		if err != nil {
			exitErr("sort", err)
		}
		quick = &k
	}

	ctx := cmd.Context()
	sess := openSession(ctx, path)
	defer sess.Close()

	if len(traders) > 0 {
		if n, err := sess.mgr.RefreshTraders(ctx, traders); err != nil {
			logger.Warn("trader refresh incomplete", "refreshed", n, "error", err)
		}
	}

	var (
		res manager.Result
		err error
	)
	if quick != nil {
		res, err = sess.mgr.QuickSort(ctx, sess.inv.ModelGrids(), *quick, simulate)
	} else {
		res, err = sess.mgr.Sort(ctx, sess.inv.ModelGrids(), simulate)
	}
	if errors.Is(err, manager.ErrDisabled) {
		sess.Close()
		exitErr("sort", fmt.Errorf("%w (set sorting.enabled in the config)", err))
	}
	if err != nil {
		keepPartial(out, sess, sortOutput{Result: res})
		exitErr("sort", err)
	}
	sess.mgr.Wait()

	order := make([]gridOrder, 0, len(sess.inv.Grids))
	for _, g := range sess.inv.Grids {
		order = append(order, gridOrder{GridID: g.ID(), Items: itemIDs(sess.mgr.Rank(g.Items()))})
	}
	sess.mgr.Finish()

	if err := saveInventory(out, sess.inv); err != nil {
		exitErr("write inventory", err)
	}
	if out == "-" {
		return
	}

	if textOutput() {
		printSortText(res, order)
		return
	}
	printJSON(sortOutput{Result: res, Order: order})
}

// parseQuickKey accepts the criteria offered as one-off quick sorts.
func parseQuickKey(s string) (ranking.Key, error) {
	k, err := ranking.ParseKey(s)
	if err != nil {
		return 0, err
	}
	if k != ranking.TraderValue && k != ranking.CellOrWeight {
		return 0, fmt.Errorf("quick sort supports trader_value or weight, not %s", k)
	}
	return k, nil
}

func itemIDs(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID()
	}
	return out
}

func printSortText(res manager.Result, order []gridOrder) {
	green := color.New(color.FgGreen).SprintFunc()
	if res.Simulated {
		fmt.Println(color.New(color.FgYellow).Sprint("simulated, inventory unchanged"))
	}
	for _, id := range res.Folded {
		fmt.Printf("%s %s\n", green("folded"), id)
	}
	for _, m := range res.Merges {
		fmt.Printf("%s %s -> %s (%d)\n", green("merged"), m.SourceID, m.TargetID, m.Units)
	}
	for _, g := range order {
		fmt.Printf("%s:\n", color.New(color.Bold).Sprint(g.GridID))
		for i, id := range g.Items {
			fmt.Printf("  %3d. %s\n", i+1, id)
		}
	}
}
