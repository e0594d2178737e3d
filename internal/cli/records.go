package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/predicate"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	ID        string   // update this record instead of creating one
	Condition []string // clauses the stored record must satisfy
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <model> <fields-json>",
		Short: "Create or update a record",
		Long: `Create a record from a JSON object of field values, or with --id
update a stored record: the given fields are applied to a copy of it
and the copy is saved under the same identity.`,
		Example: `  tessera put Post '{"title": "hello", "rating": 4}'
  tessera put Post '{"rating": 5}' --id 7a1c... --condition 'rating eq 4'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "id of the record to update")
	cmd.Flags().StringArrayVar(&opts.Condition, "condition", nil, "condition clause \"field op value\" (repeatable)")
	return cmd
}

func runPut(opts *PutOptions, modelName, fieldsJSON string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmdContext(cmd)

	fields, err := parseFields(fieldsJSON)
	if err != nil {
		return formatter.Fail("parse fields", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("open store", err)
	}
	defer s.Close()

	ctor, err := s.model(modelName)
	if err != nil {
		return formatter.Fail("resolve model", err)
	}

	var rec *model.Record
	if opts.ID == "" {
		rec, err = ctor.New(fields)
	} else {
		rec, err = copyWith(ctx, s, ctor, opts.ID, fields)
	}
	if err != nil {
		return formatter.Fail("build record", err)
	}

	var saveOpts []datastore.SaveOption
	if len(opts.Condition) > 0 {
		cond, err := predicate.FromClauses(opts.Condition)
		if err != nil {
			return formatter.Fail("parse condition", err)
		}
		saveOpts = append(saveOpts, datastore.WithCondition(func(*predicate.Criteria) predicate.Predicate { return cond }))
	}

	saved, err := s.store.Save(ctx, rec, saveOpts...)
	if err != nil {
		return formatter.Fail("save", err)
	}
	formatter.VerboseLog("Saved %s %s", saved.Model(), saved.ID())
	return formatter.Success(viewOf(saved))
}

func copyWith(ctx context.Context, s *session, ctor *model.Constructor, id string, fields ir.IRObject) (*model.Record, error) {
	current, err := s.store.QueryByID(ctx, ctor, id)
	if err != nil {
		return nil, err
	}
	return ctor.CopyOf(current, func(d *model.Draft) error {
		for _, name := range fields.SortedKeys() {
			if err := d.Set(name, fields[name]); err != nil {
				return err
			}
		}
		return nil
	})
}

func parseFields(data string) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("fields must be a JSON object, got %s", ir.KindOf(v))
	}
	return obj, nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <model> <id>",
		Short:         "Fetch one record by id",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return formatter.Fail("open store", err)
			}
			defer s.Close()

			ctor, err := s.model(args[0])
			if err != nil {
				return formatter.Fail("resolve model", err)
			}
			rec, err := s.store.QueryByID(cmdContext(cmd), ctor, args[1])
			if err != nil {
				return formatter.Fail("get", err)
			}
			return formatter.Success(viewOf(rec))
		},
	}
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where []string
	Page  uint
	Limit uint
}

// QueryResult is the output of the query command.
type QueryResult struct {
	Model   string       `json:"model"`
	Count   int          `json:"count"`
	Records []recordView `json:"records"`
}

func (r QueryResult) String() string {
	out := fmt.Sprintf("%d %s record(s)", r.Count, r.Model)
	for _, v := range r.Records {
		out += "\n" + v.String()
	}
	return out
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <model>",
		Short: "List records matching where clauses",
		Long: `List a model's records in insertion order. Where clauses have the
form "field op value" and are joined with AND; the value is JSON, or a
bare string.

Operators: eq ne gt lt ge le contains notContains beginsWith between`,
		Example: `  tessera query Post --where 'rating ge 4' --where 'tags contains go'
  tessera query Post --page 2 --limit 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "clause \"field op value\" (repeatable)")
	cmd.Flags().UintVar(&opts.Page, "page", 0, "zero-based page number")
	cmd.Flags().UintVar(&opts.Limit, "limit", 0, "page size (0 = unlimited)")
	return cmd
}

func runQuery(opts *QueryOptions, modelName string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	p, err := predicate.FromClauses(opts.Where)
	if err != nil {
		return formatter.Fail("parse where", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("open store", err)
	}
	defer s.Close()

	ctor, err := s.model(modelName)
	if err != nil {
		return formatter.Fail("resolve model", err)
	}

	res, err := s.store.Query(cmdContext(cmd), ctor, p, datastore.WithPage(opts.Page, opts.Limit))
	if err != nil {
		return formatter.Fail("query", err)
	}

	recs := res.Records
	if res.Single {
		recs = []*model.Record{res.Record}
	}
	return formatter.Success(QueryResult{Model: modelName, Count: len(recs), Records: viewsOf(recs)})
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Where []string
}

// DeleteResult is the output of the delete command.
type DeleteResult struct {
	Model   string `json:"model"`
	Deleted int    `json:"deleted"`
}

func (r DeleteResult) String() string {
	return fmt.Sprintf("deleted %d %s record(s)", r.Deleted, r.Model)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <model> [id]",
		Short: "Delete a record by id, or every record matching --where",
		Example: `  tessera delete Post 7a1c...
  tessera delete Post --where 'status eq "DRAFT"'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 2 {
				id = args[1]
			}
			return runDelete(opts, args[0], id, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "clause \"field op value\" (repeatable)")
	return cmd
}

func runDelete(opts *DeleteOptions, modelName, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if (id == "") == (len(opts.Where) == 0) {
		return NewExitError(ExitCommandError, "delete needs exactly one of an id or --where")
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("open store", err)
	}
	defer s.Close()

	ctor, err := s.model(modelName)
	if err != nil {
		return formatter.Fail("resolve model", err)
	}
	ctx := cmdContext(cmd)

	var n int
	if id != "" {
		rec, err := s.store.QueryByID(ctx, ctor, id)
		if err != nil {
			return formatter.Fail("delete", err)
		}
		deleted, err := s.store.Delete(ctx, rec)
		if err != nil {
			return formatter.Fail("delete", err)
		}
		if deleted {
			n = 1
		}
	} else {
		p, err := predicate.FromClauses(opts.Where)
		if err != nil {
			return formatter.Fail("parse where", err)
		}
		n, err = s.store.DeleteWhere(ctx, ctor, func(*predicate.Criteria) predicate.Predicate { return p })
		if err != nil {
			return formatter.Fail("delete", err)
		}
	}
	return formatter.Success(DeleteResult{Model: modelName, Deleted: n})
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
