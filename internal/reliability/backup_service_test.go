package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/meridian/internal/database"
)

type fakeStore struct {
	uploads map[string][]byte
	objects []s3types.Object
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, name string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[name] = data
	return nil
}

func (f *fakeStore) List(ctx context.Context, namePrefix string) ([]s3types.Object, error) {
	return f.objects, nil
}

func (f *fakeStore) Delete(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func openTestDB(t *testing.T, dir, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(dir, name+".db"),
		Name: name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE marker (id INTEGER PRIMARY KEY, note TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO marker (note) VALUES ('backup me')`)
	require.NoError(t, err)

	return db
}

func extractArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestCreateAndUploadBackup(t *testing.T) {
	dir := t.TempDir()
	portfolioDB := openTestDB(t, dir, "portfolio")
	historyDB := openTestDB(t, dir, "history")

	store := newFakeStore()
	svc := NewBackupService(store, []*database.DB{portfolioDB, historyDB}, dir, zerolog.Nop())

	require.NoError(t, svc.CreateAndUploadBackup(context.Background()))
	require.Len(t, store.uploads, 1)

	var archiveName string
	for name := range store.uploads {
		archiveName = name
	}
	assert.True(t, strings.HasPrefix(archiveName, "meridian-backup-"))
	assert.True(t, strings.HasSuffix(archiveName, ".tar.gz"))

	files := extractArchive(t, store.uploads[archiveName])
	assert.Contains(t, files, "portfolio.db")
	assert.Contains(t, files, "history.db")
	require.Contains(t, files, "backup-metadata.json")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "portfolio", metadata.Databases[0].Name)
	assert.True(t, strings.HasPrefix(metadata.Databases[0].Checksum, "sha256:"))
	assert.Equal(t, int64(len(files["portfolio.db"])), metadata.Databases[0].SizeBytes)

	// Snapshot carries a full database copy, not an empty file
	assert.Greater(t, len(files["portfolio.db"]), 0)
}

func backupObject(stamp time.Time, size int64) s3types.Object {
	name := "meridian-backup-" + stamp.Format("2006-01-02-150405") + ".tar.gz"
	return s3types.Object{Key: aws.String("meridian/" + name), Size: aws.Int64(size)}
}

func TestListBackupsNewestFirst(t *testing.T) {
	store := newFakeStore()
	store.objects = []s3types.Object{
		backupObject(time.Date(2025, 8, 10, 4, 0, 0, 0, time.UTC), 100),
		backupObject(time.Date(2025, 8, 12, 4, 0, 0, 0, time.UTC), 120),
		backupObject(time.Date(2025, 8, 11, 4, 0, 0, 0, time.UTC), 110),
		{Key: aws.String("meridian/unrelated.txt")},
	}

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)

	require.Len(t, backups, 3)
	assert.Equal(t, 12, backups[0].Timestamp.Day())
	assert.Equal(t, 11, backups[1].Timestamp.Day())
	assert.Equal(t, 10, backups[2].Timestamp.Day())
	assert.Equal(t, int64(120), backups[0].SizeBytes)
}

func TestRotateOldBackupsKeepsMinimum(t *testing.T) {
	store := newFakeStore()
	old := time.Now().AddDate(0, 0, -90)
	store.objects = []s3types.Object{
		backupObject(old, 1),
		backupObject(old.AddDate(0, 0, 1), 1),
		backupObject(old.AddDate(0, 0, 2), 1),
	}

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	require.NoError(t, svc.RotateOldBackups(context.Background(), 30))

	// All three are ancient but the newest three always survive
	assert.Empty(t, store.deleted)
}

func TestRotateOldBackupsDeletesExpired(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	store.objects = []s3types.Object{
		backupObject(now.AddDate(0, 0, -1), 1),
		backupObject(now.AddDate(0, 0, -2), 1),
		backupObject(now.AddDate(0, 0, -3), 1),
		backupObject(now.AddDate(0, 0, -10), 1),
		backupObject(now.AddDate(0, 0, -90), 1),
	}

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	require.NoError(t, svc.RotateOldBackups(context.Background(), 30))

	require.Len(t, store.deleted, 1)
	assert.Contains(t, store.deleted[0], now.AddDate(0, 0, -90).Format("2006-01-02"))
}

func TestRotateOldBackupsZeroRetentionKeepsEverything(t *testing.T) {
	store := newFakeStore()
	store.objects = []s3types.Object{
		backupObject(time.Now().AddDate(-1, 0, 0), 1),
		backupObject(time.Now().AddDate(-2, 0, 0), 1),
		backupObject(time.Now().AddDate(-3, 0, 0), 1),
		backupObject(time.Now().AddDate(-4, 0, 0), 1),
	}

	svc := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())
	require.NoError(t, svc.RotateOldBackups(context.Background(), 0))
	assert.Empty(t, store.deleted)
}

func TestBackupJob(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir, "portfolio")

	store := newFakeStore()
	svc := NewBackupService(store, []*database.DB{db}, dir, zerolog.Nop())
	job := NewBackupJob(svc, 30, zerolog.Nop())

	assert.Equal(t, "backup_databases", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.uploads, 1)
}
