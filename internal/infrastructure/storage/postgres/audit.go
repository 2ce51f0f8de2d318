package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used for entry details.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// defaultCompressThreshold is the details size above which entries are compressed.
const defaultCompressThreshold = 4 * 1024

var (
	_ audit.Recorder = (*ActionLogStore)(nil)
	_ audit.Reader   = (*ActionLogStore)(nil)
)

// ActionLogStore persists the action log in sys_action_log.
// Large detail documents (usage runs over big orders) are stored zstd-compressed.
type ActionLogStore struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewActionLogStore creates the store.
func NewActionLogStore(txManager *TxManager) (*ActionLogStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &ActionLogStore{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Close releases the decoder's goroutines.
func (s *ActionLogStore) Close() {
	s.decoder.Close()
}

// Record appends an entry, inside the caller's transaction when there is one.
func (s *ActionLogStore) Record(ctx context.Context, entry audit.Entry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ActorID == "" {
		entry.ActorID = appctx.ActorID(ctx)
	}

	details, compressed, algo, err := s.encodeDetails(entry.Details)
	if err != nil {
		return err
	}

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_action_log (
			id, action, entity_type, entity_id, actor_id, summary,
			details, details_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, string(entry.Action), entry.EntityType, entry.EntityID, entry.ActorID, entry.Summary,
		details, compressed, algo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action log: %w", err)
	}
	return nil
}

func (s *ActionLogStore) encodeDetails(details map[string]any) (raw []byte, compressed []byte, algo CompressionAlgo, err error) {
	if len(details) == 0 {
		return nil, nil, CompressionNone, nil
	}
	raw, err = json.Marshal(details)
	if err != nil {
		return nil, nil, "", fmt.Errorf("marshal action details: %w", err)
	}
	if len(raw) <= s.compressThreshold {
		return raw, nil, CompressionNone, nil
	}
	return nil, s.encoder.EncodeAll(raw, nil), CompressionZstd, nil
}

func (s *ActionLogStore) decodeDetails(raw, compressed []byte, algo CompressionAlgo) (map[string]any, error) {
	if algo == CompressionZstd && len(compressed) > 0 {
		var err error
		raw, err = s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress details: %w", err)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return details, nil
}

// List reads the action log newest first.
func (s *ActionLogStore) List(ctx context.Context, filter audit.Filter) (domain.ListResult[*audit.Entry], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*audit.Entry]{Limit: page.Limit, Offset: page.Offset}

	where := squirrel.And{}
	if filter.Action != "" {
		where = append(where, squirrel.Eq{"action": string(filter.Action)})
	}
	if filter.EntityType != "" {
		where = append(where, squirrel.Eq{"entity_type": filter.EntityType})
	}
	if filter.EntityID != "" {
		where = append(where, squirrel.Eq{"entity_id": filter.EntityID})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.Lt{"created_at": *filter.To})
	}

	q := s.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := Builder().Select("COUNT(*)").From("sys_action_log").Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count action log: %w", err)
	}

	sql, args, err := Builder().
		Select("id", "action", "entity_type", "entity_id", "actor_id", "summary",
			"details", "details_compressed", "compression_algo", "created_at").
		From("sys_action_log").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return result, fmt.Errorf("query action log: %w", err)
	}
	defer rows.Close()

	result.Items = make([]*audit.Entry, 0, page.Limit)
	for rows.Next() {
		var (
			e          audit.Entry
			action     string
			raw        []byte
			compressed []byte
			algo       CompressionAlgo
		)
		if err := rows.Scan(&e.ID, &action, &e.EntityType, &e.EntityID, &e.ActorID, &e.Summary,
			&raw, &compressed, &algo, &e.CreatedAt); err != nil {
			return result, fmt.Errorf("scan action log: %w", err)
		}
		e.Action = audit.Action(action)
		if e.Details, err = s.decodeDetails(raw, compressed, algo); err != nil {
			return result, err
		}
		result.Items = append(result.Items, &e)
	}
	return result, rows.Err()
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}
