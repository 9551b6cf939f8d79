package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chat-api/internal/storage/zapadapter"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Every collection is a table of the current schema with the layout below.
// Timestamps live in their own columns, all other fields in doc.
const createTableSQL = `create table if not exists %s (
	id         char(24) primary key,
	doc        jsonb not null default '{}'::jsonb,
	created_at timestamptz not null,
	updated_at timestamptz not null
)`

// postgresStore uses PostgreSQL jsonb columns as a document store
type postgresStore struct {
	logger  *zap.SugaredLogger
	db      *pgxpool.Pool
	name    string
	ensured sync.Map
}

// newPostgresStore sets provided zap.Logger via zapadapter to pgxpool.Pool.
// The pool connects lazily so that an unreachable server fails requests, not startup.
func newPostgresStore(ctx context.Context, logger *zap.SugaredLogger, cfg Config, s settings) (*postgresStore, error) {
	config, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar(), config.ConnConfig.Database)
	config.ConnConfig.LogLevel = pgx.LogLevelWarn
	config.ConnConfig.ConnectTimeout = s.connectTimeout
	config.MaxConns = s.maxConns
	config.LazyConnect = true

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ConnectConfig: %w", err)
	}

	logger.Infof("Using PostgreSQL database %q", config.ConnConfig.Database)

	return &postgresStore{
		logger: logger,
		db:     pool,
		name:   config.ConnConfig.Database,
	}, nil
}

func (s *postgresStore) CreateDocument(ctx context.Context, collection string, doc Document) (string, error) {
	if err := s.ensureCollection(ctx, collection); err != nil {
		return "", err
	}

	id := stamp(doc)
	s.logger.Debugf("Creating document %s in collection %s", id.Hex(), collection)

	body, err := json.Marshal(documentBody(doc))
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	sql := fmt.Sprintf("insert into %s (id, doc, created_at, updated_at) values ($1, $2, $3, $4)", table(collection))
	_, err = s.db.Exec(ctx, sql, id.Hex(), jsonb(body), doc[CreatedAtField], doc[UpdatedAtField])
	if err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}

	return id.Hex(), nil
}

func (s *postgresStore) GetDocuments(ctx context.Context, collection string, filter Filter, limit int64) ([]Document, error) {
	s.logger.Debugf("Retrieving documents from collection %s (limit: %d)", collection, limit)

	where, args, err := whereClause(filter, nil)
	if err != nil {
		if errors.Is(err, ErrInvalidID) {
			return []Document{}, nil
		}
		return nil, err
	}

	sql := fmt.Sprintf("select id, doc, created_at, updated_at from %s where %s order by created_at, id", table(collection), where)
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(" limit $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		if isUndefinedTable(err) {
			return []Document{}, nil
		}
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return []Document{}, nil
		}
		return nil, fmt.Errorf("reading %s rows: %w", collection, err)
	}

	s.logger.Debugf("Retrieved %d documents", len(docs))

	return docs, nil
}

func (s *postgresStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	where, args, err := whereClause(filter, nil)
	if err != nil {
		if errors.Is(err, ErrInvalidID) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sql := fmt.Sprintf("select id, doc, created_at, updated_at from %s where %s order by created_at, id limit 1", table(collection), where)
	doc, err := scanDocument(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding one in %s: %w", collection, err)
	}

	return doc, nil
}

func (s *postgresStore) AddToSet(ctx context.Context, collection string, filter Filter, field string, value interface{}) error {
	element, err := json.Marshal([]interface{}{value})
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	where, args, err := whereClause(filter, []interface{}{field, jsonb(element)})
	if err != nil {
		if errors.Is(err, ErrInvalidID) {
			return nil
		}
		return err
	}

	sql := fmt.Sprintf(`update %s
		   set doc = jsonb_set(doc, array[$1::text], coalesce(doc->($1::text), '[]'::jsonb) || $2::jsonb)
		 where %s
		   and not coalesce(doc->($1::text), '[]'::jsonb) @> $2::jsonb`, table(collection), where)

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		if isUndefinedTable(err) {
			return nil
		}
		return fmt.Errorf("updating %s: %w", collection, err)
	}

	s.logger.Debugf("Add to set on %s.%s modified %d", collection, field, tag.RowsAffected())

	return nil
}

func (s *postgresStore) CollectionNames(ctx context.Context) ([]string, error) {
	sql := `select coalesce(array_agg(table_name::text order by table_name), '{}')
			  from information_schema.tables
			 where table_schema = current_schema()`

	var names pgtype.TextArray
	if err := s.db.QueryRow(ctx, sql).Scan(&names); err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	var out []string
	if err := names.AssignTo(&out); err != nil {
		return nil, fmt.Errorf("assigning table names: %w", err)
	}

	return out, nil
}

func (s *postgresStore) Name() string {
	return s.name
}

func (s *postgresStore) Close(_ context.Context) error {
	s.db.Close()
	return nil
}

// ensureCollection creates the collection table once per process
func (s *postgresStore) ensureCollection(ctx context.Context, collection string) error {
	if _, ok := s.ensured.Load(collection); ok {
		return nil
	}

	_, err := s.db.Exec(ctx, fmt.Sprintf(createTableSQL, table(collection)))
	if err != nil {
		var pgErr *pgconn.PgError
		// concurrent "create table if not exists" may still collide on the catalog
		if !errors.As(err, &pgErr) || (pgErr.Code != pgerrcode.DuplicateTable && pgErr.Code != pgerrcode.UniqueViolation) {
			return fmt.Errorf("creating table %s: %w", collection, err)
		}
	}

	s.ensured.Store(collection, struct{}{})
	return nil
}

func table(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

func jsonb(b []byte) pgtype.JSONB {
	return pgtype.JSONB{Bytes: b, Status: pgtype.Present}
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable
}

// documentBody drops the fields kept in dedicated columns
func documentBody(doc Document) Document {
	body := make(Document, len(doc))
	for k, v := range doc {
		switch k {
		case IDField, CreatedAtField, UpdatedAtField:
			continue
		}
		body[k] = v
	}
	return body
}

// whereClause translates equality filter into SQL appending its parameters to args.
// Identifier and timestamps are compared with their columns, other fields by jsonb containment.
func whereClause(filter Filter, args []interface{}) (string, []interface{}, error) {
	var conds []string
	contained := make(map[string]interface{})

	for k, v := range filter {
		switch k {
		case IDField:
			hex, err := idHex(v)
			if err != nil {
				return "", nil, err
			}
			args = append(args, hex)
			conds = append(conds, fmt.Sprintf("id = $%d", len(args)))
		case CreatedAtField, UpdatedAtField:
			args = append(args, v)
			conds = append(conds, fmt.Sprintf("%s = $%d", pgx.Identifier{k}.Sanitize(), len(args)))
		default:
			contained[k] = v
		}
	}

	if len(contained) > 0 {
		b, err := json.Marshal(contained)
		if err != nil {
			return "", nil, fmt.Errorf("encoding filter: %w", err)
		}
		args = append(args, jsonb(b))
		conds = append(conds, fmt.Sprintf("doc @> $%d::jsonb", len(args)))
	}

	if len(conds) == 0 {
		return "true", args, nil
	}

	return strings.Join(conds, " and "), args, nil
}

func idHex(v interface{}) (string, error) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		oid, err := ParseID(id)
		if err != nil {
			return "", err
		}
		return oid.Hex(), nil
	default:
		return "", fmt.Errorf("%w: %v", ErrInvalidID, v)
	}
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		id        string
		body      pgtype.JSONB
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &body, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc := make(Document)
	if body.Status == pgtype.Present {
		if err := json.Unmarshal(body.Bytes, &doc); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", id, err)
		}
	}

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("decoding id %q: %w", id, err)
	}

	doc[IDField] = oid
	doc[CreatedAtField] = createdAt.UTC()
	doc[UpdatedAtField] = updatedAt.UTC()

	return doc, nil
}
