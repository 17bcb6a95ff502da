package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/parkhaus/parkhaus-backend/models"
)

// SqlToModel runs the query and adapts the single expected row. No row at
// all is a NotFoundError.
func SqlToModel[DBModel, Model any](
	ctx context.Context,
	exec Executor,
	query squirrel.Sqlizer,
	adapter func(dbModel DBModel) (Model, error),
) (Model, error) {
	var zero Model

	model, err := SqlToOptionalModel(ctx, exec, query, adapter)
	if err != nil {
		return zero, err
	}
	if model == nil {
		return zero, errors.WithStack(models.NotFoundError)
	}
	return *model, nil
}

// SqlToOptionalModel is SqlToModel for queries where no row is a legitimate
// outcome; it returns nil instead of NotFoundError.
func SqlToOptionalModel[DBModel, Model any](
	ctx context.Context,
	exec Executor,
	query squirrel.Sqlizer,
	adapter func(dbModel DBModel) (Model, error),
) (*Model, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "can't build sql query")
	}

	rows, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, adaptPgError(err)
	}

	dbModel, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[DBModel])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, adaptPgError(err)
	}

	model, err := adapter(dbModel)
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func SqlToListOfModels[DBModel, Model any](
	ctx context.Context,
	exec Executor,
	query squirrel.Sqlizer,
	adapter func(dbModel DBModel) (Model, error),
) ([]Model, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "can't build sql query")
	}

	rows, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, adaptPgError(err)
	}

	dbModels, err := pgx.CollectRows(rows, pgx.RowToStructByName[DBModel])
	if err != nil {
		return nil, adaptPgError(err)
	}

	out := make([]Model, 0, len(dbModels))
	for _, dbModel := range dbModels {
		model, err := adapter(dbModel)
		if err != nil {
			return nil, err
		}
		out = append(out, model)
	}
	return out, nil
}

// ExecuteQuery runs a statement and returns how many rows it touched.
func ExecuteQuery(ctx context.Context, exec Executor, query squirrel.Sqlizer) (int64, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "can't build sql query")
	}

	tag, err := exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, adaptPgError(err)
	}
	return tag.RowsAffected(), nil
}
