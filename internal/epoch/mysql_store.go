package epoch

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
)

// MySQLStore 使用 MySQL 保存纪元历史。见证列表以 JSON 编码存储，
// 纪元行只增不删，封口 ValidUntil 是唯一允许的更新。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建 MySQL 纪元存储并初始化表结构。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS witness_epochs (
        id BIGINT UNSIGNED PRIMARY KEY,
        witnesses TEXT NOT NULL,
        required_signatures INT NOT NULL,
        valid_from BIGINT NOT NULL,
        valid_until BIGINT NOT NULL DEFAULT 0,
        created_at BIGINT NOT NULL,
        INDEX idx_epoch_valid_from (valid_from)
)`
	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 witness_epochs 表失败")
	}
	return nil
}

// Append 在单个事务内封口前一个纪元并插入新纪元。
func (s *MySQLStore) Append(ctx context.Context, epoch *Epoch) error {
	if epoch == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "epoch 不能为空")
	}
	witnesses, err := json.Marshal(epoch.Witnesses)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码见证列表失败")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启事务失败")
	}
	defer func() { _ = tx.Rollback() }()

	const seal = `UPDATE witness_epochs SET valid_until = ?
        WHERE valid_until = 0 AND id = (SELECT id FROM (SELECT MAX(id) AS id FROM witness_epochs) latest)`
	if _, err := tx.ExecContext(ctx, seal, epoch.ValidFrom); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "封口前一纪元失败")
	}

	const insert = `INSERT INTO witness_epochs
        (id, witnesses, required_signatures, valid_from, valid_until, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert,
		epoch.ID,
		string(witnesses),
		epoch.RequiredSignatures,
		epoch.ValidFrom,
		epoch.ValidUntil,
		epoch.CreatedAt,
	); err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return xerrors.New(xerrors.CodeConflict, "纪元编号已存在")
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入纪元失败")
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交纪元失败")
	}
	return nil
}

// Get 按编号查询纪元。
func (s *MySQLStore) Get(ctx context.Context, id uint64) (*Epoch, error) {
	const stmt = `SELECT id, witnesses, required_signatures, valid_from, valid_until, created_at
        FROM witness_epochs WHERE id = ?`
	return s.scanEpoch(s.db.QueryRowContext(ctx, stmt, id))
}

// Latest 返回编号最大的纪元。
func (s *MySQLStore) Latest(ctx context.Context) (*Epoch, error) {
	const stmt = `SELECT id, witnesses, required_signatures, valid_from, valid_until, created_at
        FROM witness_epochs ORDER BY id DESC LIMIT 1`
	epoch, err := s.scanEpoch(s.db.QueryRowContext(ctx, stmt))
	if err != nil {
		if stdErrors.Is(err, ErrEpochNotFound) {
			return nil, ErrNoCurrentEpoch
		}
		return nil, err
	}
	return epoch, nil
}

// List 按编号升序返回全部纪元。
func (s *MySQLStore) List(ctx context.Context) ([]*Epoch, error) {
	const stmt = `SELECT id, witnesses, required_signatures, valid_from, valid_until, created_at
        FROM witness_epochs ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询纪元列表失败")
	}
	defer rows.Close()

	var epochs []*Epoch
	for rows.Next() {
		epoch, err := scanEpochRow(rows)
		if err != nil {
			return nil, err
		}
		epochs = append(epochs, epoch)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历纪元失败")
	}
	return epochs, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *MySQLStore) scanEpoch(row rowScanner) (*Epoch, error) {
	epoch, err := scanEpochRow(row)
	if err != nil {
		return nil, err
	}
	return epoch, nil
}

func scanEpochRow(row rowScanner) (*Epoch, error) {
	var epoch Epoch
	var witnesses string
	if err := row.Scan(
		&epoch.ID,
		&witnesses,
		&epoch.RequiredSignatures,
		&epoch.ValidFrom,
		&epoch.ValidUntil,
		&epoch.CreatedAt,
	); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrEpochNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取纪元记录失败")
	}
	var decoded []claim.Witness
	if err := json.Unmarshal([]byte(witnesses), &decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析见证列表失败")
	}
	epoch.Witnesses = decoded
	return &epoch, nil
}

var _ Store = (*MySQLStore)(nil)
