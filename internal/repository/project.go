package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bigkaa/chai-api/internal/projector"
)

// SearchResultLimit — максимальное количество результатов поиска по имени.
const SearchResultLimit = 10

// packageManagersExpr — типы источников пакетов канона (ARRAY_AGG DISTINCT).
// %s — выражение с id канона.
const packageManagersExpr = `(
		SELECT ARRAY_AGG(DISTINCT s.type)
		FROM canon_packages cp2
		JOIN packages p2          ON cp2.package_id = p2.id
		JOIN package_managers pm2 ON p2.package_manager_id = pm2.id
		JOIN sources s            ON pm2.source_id = s.id
		WHERE cp2.canon_id = %s
	)`

// projectDetailQuery — карточка проекта с последним рангом и счётчиками зависимостей.
var projectDetailQuery = fmt.Sprintf(`
	WITH base AS MATERIALIZED (
		SELECT
			c.id,
			u_homepage.url AS homepage,
			c.name,
			COALESCE(tr_latest.rank, '0') AS "teaRank",
			tr_latest.created_at AS "teaRankCalculatedAt",
			%s AS "packageManagers",
			(
				SELECT COUNT(*)::bigint
				FROM legacy_dependencies ld
				JOIN canon_packages cp_out ON cp_out.package_id = ld.package_id
				WHERE cp_out.canon_id = c.id
			) AS "dependenciesCount",
			(
				SELECT COUNT(*)::bigint
				FROM legacy_dependencies ld
				JOIN canon_packages cp_in ON cp_in.package_id = ld.dependency_id
				WHERE cp_in.canon_id = c.id
			) AS "dependentsCount"
		FROM canons c
		JOIN urls u_homepage ON c.url_id = u_homepage.id
		LEFT JOIN LATERAL (
			SELECT tr.rank, tr.created_at
			FROM tea_ranks tr
			WHERE tr.canon_id = c.id
			ORDER BY tr.created_at DESC
			LIMIT 1
		) tr_latest ON TRUE
		WHERE c.id = $1
	)
	SELECT DISTINCT ON (b.id)
		b.id         AS "projectId",
		b.homepage,
		b.name,
		u_source.url AS source,
		b."teaRank",
		b."teaRankCalculatedAt",
		b."packageManagers",
		b."dependenciesCount",
		b."dependentsCount"
	FROM base b
	JOIN canon_packages cp ON cp.canon_id = b.id
	JOIN package_urls pu   ON pu.package_id = cp.package_id
	JOIN urls u_source     ON pu.url_id = u_source.id
	JOIN url_types ut      ON ut.id = u_source.url_type_id
	WHERE ut.name = 'source'
	ORDER BY b.id, b."teaRankCalculatedAt" DESC, u_source.url`, fmt.Sprintf(packageManagersExpr, "c.id"))

// projectsByIDsQuery — проекты по списку id, по одной строке на канон.
var projectsByIDsQuery = fmt.Sprintf(`
	SELECT DISTINCT ON (c.id)
		c.id AS "projectId",
		u_homepage.url AS homepage,
		c.name,
		u_source.url AS source,
		COALESCE(tr.rank, '0') AS "teaRank",
		tr.created_at AS "teaRankCalculatedAt",
		%s AS "packageManagers"
	FROM canons c
	JOIN urls u_homepage   ON u_homepage.id = c.url_id
	JOIN canon_packages cp ON cp.canon_id = c.id
	JOIN package_urls pu   ON pu.package_id = cp.package_id
	JOIN urls u_source     ON pu.url_id = u_source.id
	JOIN url_types ut      ON ut.id = u_source.url_type_id
	LEFT JOIN tea_ranks tr ON tr.canon_id = c.id
	WHERE c.id = ANY($1::uuid[]) AND ut.name = 'source'
	ORDER BY c.id, tr.created_at DESC, u_source.url`, fmt.Sprintf(packageManagersExpr, "c.id"))

// rankedProjectsQuery — проекты с положительным рангом, упорядоченные
// по числовому значению ранга, не более $2.
var rankedProjectsQuery = fmt.Sprintf(`
	SELECT *
	FROM (
		SELECT DISTINCT ON (c.id)
			c.id AS "projectId",
			u_homepage.url AS homepage,
			c.name,
			u_source.url AS source,
			COALESCE(tr.rank, '0') AS "teaRank",
			tr.created_at AS "teaRankCalculatedAt",
			%s AS "packageManagers"
		FROM canons c
		JOIN urls u_homepage       ON c.url_id = u_homepage.id
		JOIN canon_packages cp     ON cp.canon_id = c.id
		JOIN package_urls pu       ON pu.package_id = cp.package_id
		JOIN urls u_source         ON pu.url_id = u_source.id
		JOIN url_types ut_source   ON ut_source.id = u_source.url_type_id
		LEFT JOIN tea_ranks tr     ON tr.canon_id = c.id
		WHERE c.id = ANY($1::uuid[])
			AND ut_source.name = 'source'
			AND CAST(tr.rank AS NUMERIC) > 0
		ORDER BY c.id, tr.created_at DESC, u_source.url
	) sub
	ORDER BY CAST("teaRank" AS NUMERIC) DESC NULLS LAST
	LIMIT $2`, fmt.Sprintf(packageManagersExpr, "c.id"))

// searchProjectsQuery — поиск по имени (ILIKE), короткие имена первыми.
var searchProjectsQuery = fmt.Sprintf(`
	SELECT *
	FROM (
		SELECT DISTINCT ON (c.id)
			c.id AS "projectId",
			u_homepage.url AS homepage,
			c.name,
			u_source.url AS source,
			%s AS "packageManagers"
		FROM canons c
		JOIN urls u_homepage     ON c.url_id = u_homepage.id
		JOIN canon_packages cp   ON cp.canon_id = c.id
		JOIN package_urls pu     ON pu.package_id = cp.package_id
		JOIN urls u_source       ON pu.url_id = u_source.id
		JOIN url_types ut_source ON ut_source.id = u_source.url_type_id
		WHERE ut_source.name = 'source' AND c.name ILIKE $1
		ORDER BY c.id
	) sub
	ORDER BY LENGTH(name), name
	LIMIT %d`, fmt.Sprintf(packageManagersExpr, "c.id"), SearchResultLimit)

// latestRunQuery — номер последнего расчёта рейтинга (NULL, если расчётов нет).
const latestRunQuery = `SELECT MAX(run) FROM tea_rank_runs`

// topProjectsQuery — лучшие проекты расчёта $1. Ранг хранится текстом,
// поэтому порядок строковый.
var topProjectsQuery = fmt.Sprintf(`
	SELECT
		tr.canon_id AS "projectId",
		c.name,
		tr.rank AS "teaRank",
		%s AS "packageManagers"
	FROM tea_ranks tr
	JOIN canons c ON tr.canon_id = c.id
	WHERE tr.tea_rank_run = $1
	ORDER BY tr.rank DESC
	LIMIT $2`, fmt.Sprintf(packageManagersExpr, "tr.canon_id"))

// ProjectRepository — интерфейс чтения проектов (канонов).
type ProjectRepository interface {
	// GetProject возвращает карточку проекта или ErrNotFound.
	GetProject(ctx context.Context, id uuid.UUID) (projector.Row, error)
	// ListProjectsByIDs возвращает проекты по списку id (порядок — по id).
	ListProjectsByIDs(ctx context.Context, ids []uuid.UUID) ([]projector.Row, error)
	// SearchProjects ищет проекты по подстроке имени, не более SearchResultLimit.
	SearchProjects(ctx context.Context, name string) ([]projector.Row, error)
	// FetchProjects возвращает ранжированные проекты из ids, не более limit.
	FetchProjects(ctx context.Context, ids []uuid.UUID, limit int) ([]projector.Row, error)
	// FetchTopProjects возвращает лучшие проекты последнего расчёта рейтинга.
	FetchTopProjects(ctx context.Context, limit int) ([]projector.Row, error)
}

// projectRepo — реализация ProjectRepository через pgx.
type projectRepo struct {
	db DBTX
}

// NewProjectRepository создаёт репозиторий проектов.
func NewProjectRepository(db DBTX) ProjectRepository {
	return &projectRepo{db: db}
}

// GetProject возвращает карточку проекта или ErrNotFound.
func (r *projectRepo) GetProject(ctx context.Context, id uuid.UUID) (projector.Row, error) {
	rows, err := r.query(ctx, "получения проекта", projectDetailQuery, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (r *projectRepo) ListProjectsByIDs(ctx context.Context, ids []uuid.UUID) ([]projector.Row, error) {
	return r.query(ctx, "получения проектов", projectsByIDsQuery, ids)
}

func (r *projectRepo) SearchProjects(ctx context.Context, name string) ([]projector.Row, error) {
	return r.query(ctx, "поиска проектов", searchProjectsQuery, "%"+name+"%")
}

// FetchProjects — один пакетный запрос на все ids.
func (r *projectRepo) FetchProjects(ctx context.Context, ids []uuid.UUID, limit int) ([]projector.Row, error) {
	return r.query(ctx, "получения ранжированных проектов", rankedProjectsQuery, ids, limit)
}

// FetchTopProjects находит последний расчёт рейтинга и возвращает его лучшие проекты.
// Если расчётов ещё не было, результат пустой.
func (r *projectRepo) FetchTopProjects(ctx context.Context, limit int) ([]projector.Row, error) {
	var run pgtype.Int8
	if err := r.db.QueryRow(ctx, latestRunQuery).Scan(&run); err != nil {
		return nil, fmt.Errorf("ошибка получения последнего расчёта: %w", err)
	}
	if !run.Valid {
		return []projector.Row{}, nil
	}
	return r.query(ctx, "получения лучших проектов", topProjectsQuery, run.Int64, limit)
}

func (r *projectRepo) query(ctx context.Context, op, sql string, args ...any) ([]projector.Row, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка %s: %w", op, err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("ошибка %s: %w", op, err)
	}
	return result, nil
}
