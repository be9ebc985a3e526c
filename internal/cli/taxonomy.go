package cli

import (
	"fmt"
	"strings"

	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	taxAddName        string
	taxAddParent      string
	taxAddDescription string
	taxAddPriority    string
	taxAddRules       []string
)

// taxonomyCmd represents the taxonomy command
var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Edit a taxonomy file",
	Long: `Edit a taxonomy file in place. Removed ids are retired and never reused,
so reports computed before the edit stay comparable.`,
}

var taxonomyShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "List sub-categories grouped by parent category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tax, err := pipeline.LoadTaxonomy(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		parent := ""
		for i, sc := range tax.SubCategories {
			if i == 0 || sc.ParentCategory != parent {
				parent = sc.ParentCategory
				fmt.Fprintf(out, "%s:\n", parent)
			}
			fmt.Fprintf(out, "  %s  %-6s  %s", sc.ID, sc.Priority, sc.Name)
			if len(sc.RelatedRuleIDs) > 0 {
				fmt.Fprintf(out, "  [%s]", strings.Join(sc.RelatedRuleIDs, ", "))
			}
			fmt.Fprintln(out)
		}
		if len(tax.RetiredIDs) > 0 {
			fmt.Fprintf(out, "Retired: %s\n", strings.Join(tax.RetiredIDs, ", "))
		}
		return nil
	},
}

var taxonomyAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Add a sub-category with the next free id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, err := model.ParsePriority(taxAddPriority)
		if err != nil {
			return err
		}
		return editTaxonomy(cmd, args[0], func(tax model.SubCategoryTaxonomy) (model.SubCategoryTaxonomy, string, error) {
			id := tax.NextID()
			out, err := tax.WithSubCategory(model.SubCategory{
				ID:             id,
				Name:           taxAddName,
				Description:    taxAddDescription,
				ParentCategory: taxAddParent,
				RelatedRuleIDs: taxAddRules,
				Priority:       priority,
			})
			return out, "Added " + id, err
		})
	},
}

var taxonomyRemoveCmd = &cobra.Command{
	Use:   "remove <file> <id>",
	Short: "Remove a sub-category and retire its id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTaxonomy(cmd, args[0], func(tax model.SubCategoryTaxonomy) (model.SubCategoryTaxonomy, string, error) {
			out, err := tax.WithoutSubCategory(args[1])
			return out, "Removed " + args[1], err
		})
	},
}

var taxonomyRenameCmd = &cobra.Command{
	Use:   "rename <file> <id> <name>",
	Short: "Rename a sub-category",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTaxonomy(cmd, args[0], func(tax model.SubCategoryTaxonomy) (model.SubCategoryTaxonomy, string, error) {
			out, err := tax.WithRenamed(args[1], args[2])
			return out, "Renamed " + args[1], err
		})
	},
}

var taxonomyPriorityCmd = &cobra.Command{
	Use:   "priority <file> <id> <high|medium|low>",
	Short: "Change a sub-category's priority",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, err := model.ParsePriority(args[2])
		if err != nil {
			return err
		}
		return editTaxonomy(cmd, args[0], func(tax model.SubCategoryTaxonomy) (model.SubCategoryTaxonomy, string, error) {
			out, err := tax.WithPriority(args[1], priority)
			return out, fmt.Sprintf("Set %s to %s", args[1], priority), err
		})
	},
}

// editTaxonomy loads path, applies edit and writes the result back
func editTaxonomy(cmd *cobra.Command, path string, edit func(model.SubCategoryTaxonomy) (model.SubCategoryTaxonomy, string, error)) error {
	tax, err := pipeline.LoadTaxonomy(path)
	if err != nil {
		return err
	}
	edited, msg, err := edit(tax)
	if err != nil {
		return err
	}
	if err := pipeline.WriteYAML(path, edited); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%d sub-categories)\n", msg, edited.Len())
	return nil
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
	taxonomyCmd.AddCommand(taxonomyShowCmd, taxonomyAddCmd, taxonomyRemoveCmd, taxonomyRenameCmd, taxonomyPriorityCmd)

	taxonomyAddCmd.Flags().StringVar(&taxAddName, "name", "", "sub-category name")
	taxonomyAddCmd.Flags().StringVar(&taxAddParent, "parent", "", "parent category")
	taxonomyAddCmd.Flags().StringVar(&taxAddDescription, "description", "", "what behaviour it tests")
	taxonomyAddCmd.Flags().StringVar(&taxAddPriority, "priority", "medium", "high, medium or low")
	taxonomyAddCmd.Flags().StringSliceVar(&taxAddRules, "rules", nil, "related rule ids, comma separated")
	_ = taxonomyAddCmd.MarkFlagRequired("name")
}
