package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationPattern matches files such as 0001_init_ledger.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one schema change file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int                 `bigquery:"version"`
	Name      string              `bigquery:"name"`
	AppliedAt time.Time           `bigquery:"applied_at"`
	Checksum  bigquery.NullString `bigquery:"checksum"`
	AppliedBy bigquery.NullString `bigquery:"applied_by"`
}

// Migrator applies the embedded migrations to one dataset.
type Migrator struct {
	client    *bigquery.Client
	project   string
	dataset   string
	appliedBy string
	log       zerolog.Logger
}

// NewMigrator returns a Migrator for dataset in the client's project.
func NewMigrator(client *bigquery.Client, dataset, appliedBy string, log zerolog.Logger) *Migrator {
	return &Migrator{client: client, project: client.Project(), dataset: dataset, appliedBy: appliedBy, log: log}
}

// Up applies every pending migration in version order and returns how many ran.
// A changed checksum on an applied migration is logged, not re-applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.run(ctx, "CREATE SCHEMA IF NOT EXISTS `"+m.project+"."+m.dataset+"`"); err != nil {
		return 0, fmt.Errorf("Up: ensure dataset: %w", err)
	}
	if err := m.run(ctx, `
		CREATE TABLE IF NOT EXISTS `+m.table("schema_migrations")+` (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)`); err != nil {
		return 0, fmt.Errorf("Up: ensure schema_migrations: %w", err)
	}

	migrations, err := LoadMigrations(migrationsFS, "migrations", m.project, m.dataset)
	if err != nil {
		return 0, fmt.Errorf("Up: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("Up: %w", err)
	}
	m.log.Info().Int("found", len(migrations)).Int("applied", len(applied)).Msg("migration state loaded")

	count := 0
	for _, mig := range migrations {
		if prev, ok := applied[mig.Version]; ok {
			if prev.Checksum.Valid && prev.Checksum.StringVal != mig.Checksum {
				m.log.Warn().Int("version", mig.Version).Str("name", mig.Name).Msg("applied migration has changed on disk")
			}
			m.log.Debug().Int("version", mig.Version).Str("name", mig.Name).Msg("skip, already applied")
			continue
		}

		m.log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("applying migration")
		if err := m.run(ctx, mig.SQL); err != nil {
			return count, fmt.Errorf("Up: %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.run(ctx, `
			INSERT INTO `+m.table("schema_migrations")+`
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`,
			bigquery.QueryParameter{Name: "version", Value: mig.Version},
			bigquery.QueryParameter{Name: "name", Value: mig.Name},
			bigquery.QueryParameter{Name: "checksum", Value: mig.Checksum},
			bigquery.QueryParameter{Name: "applied_by", Value: m.appliedBy},
		); err != nil {
			return count, fmt.Errorf("Up: record %04d_%s: %w", mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

func (m *Migrator) table(name string) string {
	return qualifiedTable(m.project, m.dataset, name)
}

func (m *Migrator) run(ctx context.Context, sql string, params ...bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]AppliedMigration, error) {
	rows, err := readAll[AppliedMigration](ctx, m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+m.table("schema_migrations")+`
		ORDER BY version`))
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	out := make(map[int]AppliedMigration, len(rows))
	for _, r := range rows {
		out[r.Version] = r
	}
	return out, nil
}

// LoadMigrations reads migration files from dir in fsys, substitutes the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders and sorts them by version.
// Files that do not match the naming pattern are ignored. The checksum is
// taken before substitution so it does not depend on the target dataset.
func LoadMigrations(fsys fs.FS, dir, project, dataset string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("LoadMigrations: read dir: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := migrationPattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("LoadMigrations: version %04d used by %s and %s", version, other, e.Name())
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("LoadMigrations: read %s: %w", e.Name(), err)
		}
		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		out = append(out, Migration{
			Version:  version,
			Name:     match[2],
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
