package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/formatter"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var (
	listAll      bool
	listKind     string
	listMaturity string
	listCategory string
	listSort     string
	listLimit    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bullets ranked by effective score",
	Long: `List the bullets of the playbooks in scope.

Deprecated and retired bullets are hidden unless --all is given.

Examples:
  cm list
  cm list --maturity proven --limit 10
  cm list --kind anti_pattern -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listAll, "all", false, "Include deprecated and retired bullets")
	listCmd.Flags().StringVar(&listKind, "kind", "", "Only bullets of this kind")
	listCmd.Flags().StringVar(&listMaturity, "maturity", "", "Only bullets at this maturity")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Only bullets in this category")
	listCmd.Flags().StringVar(&listSort, "sort", "score", "Sort by score, updated or id")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Show at most this many bullets (0 = all)")
}

// bulletFilter selects bullets for list.
type bulletFilter struct {
	All      bool
	Kind     types.Kind
	Maturity types.Maturity
	Category string
}

func (f bulletFilter) match(b *types.Bullet) bool {
	if !f.All && !b.IsLive() {
		return false
	}
	if f.Kind != "" && b.Kind != f.Kind {
		return false
	}
	if f.Maturity != "" {
		m := b.Maturity
		if b.IsDeprecated() {
			m = types.MaturityDeprecated
		}
		if m != f.Maturity {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(b.Category, f.Category) {
		return false
	}
	return true
}

// sortRows reorders score-ranked rows by key.
func sortRows(rows []formatter.ScoredBullet, key string) error {
	switch key {
	case "", "score":
	case "updated":
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Bullet.UpdatedAt.After(rows[j].Bullet.UpdatedAt)
		})
	case "id":
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Bullet.ID < rows[j].Bullet.ID
		})
	default:
		return fmt.Errorf("unknown sort key %q (want score, updated or id)", key)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	filter := bulletFilter{
		All:      listAll,
		Kind:     types.Kind(listKind),
		Maturity: types.Maturity(listMaturity),
		Category: listCategory,
	}
	if filter.Maturity != "" && !filter.Maturity.Valid() {
		return fmt.Errorf("unknown maturity %q", listMaturity)
	}

	var bullets []*types.Bullet
	for _, t := range app.readTargets() {
		pb, err := t.Store.Load()
		if err != nil {
			return err
		}
		for _, b := range pb.Bullets {
			if filter.match(b) {
				bullets = append(bullets, b)
			}
		}
	}

	rows := scoredBullets(bullets, app.cfg.ScoringConfig())
	if err := sortRows(rows, listSort); err != nil {
		return err
	}
	if listLimit > 0 && len(rows) > listLimit {
		rows = rows[:listLimit]
	}

	if ok, err := emit(cmd.OutOrStdout(), rows); ok {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No bullets found")
		return nil
	}
	return formatter.BulletTable(cmd.OutOrStdout(), rows, app.now())
}
