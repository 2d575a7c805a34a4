package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

type widget struct {
	ID     int
	Name   string `gorm:"uniqueIndex"`
	Status string
}

func openWidgets(t *testing.T) *Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return FromConn(conn)
}

func countWidgets(t *testing.T, c *Client, name string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&widget{}).Where("name = ?", name).Count(&n).Error)
	return n
}

func TestWithTxCommitsOrRollsBack(t *testing.T) {
	c := openWidgets(t)
	ctx := context.Background()

	require.NoError(t, c.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	}))
	boom := errors.New("boom")
	err := c.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&widget{Name: "dropped"}).Error)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countWidgets(t, c, "kept"))
	assert.Zero(t, countWidgets(t, c, "dropped"))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	c := openWidgets(t)

	assert.Panics(t, func() {
		_ = c.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&widget{Name: "panicked"}).Error)
			panic("boom")
		})
	})
	assert.Zero(t, countWidgets(t, c, "panicked"))
}

func TestPing(t *testing.T) {
	assert.NoError(t, openWidgets(t).Ping(context.Background()))
}

func TestRequireAffectedDetectsStaleWrite(t *testing.T) {
	c := openWidgets(t)
	row := widget{Name: "guarded", Status: "pending"}
	require.NoError(t, c.DB().Create(&row).Error)

	complete := func() *gorm.DB {
		return c.DB().Model(&widget{}).
			Where("id = ? AND status = ?", row.ID, "pending").
			Update("status", "completed")
	}
	assert.NoError(t, RequireAffected(complete()))
	assert.ErrorIs(t, RequireAffected(complete()), ErrStaleWrite)
}

func TestIsUniqueViolation(t *testing.T) {
	c := openWidgets(t)
	require.NoError(t, c.DB().Create(&widget{Name: "dupe"}).Error)

	assert.True(t, IsUniqueViolation(c.DB().Create(&widget{Name: "dupe"}).Error, ""))
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
}

func TestQueryLogger(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &out})

	session := openWidgets(t).DB().Session(&gorm.Session{Logger: queryLogger(context.Background(), logg, time.Nanosecond)})
	require.NoError(t, session.Create(&widget{Name: "slow"}).Error)
	assert.Contains(t, out.String(), "db.slow_query")

	assert.NotNil(t, queryLogger(context.Background(), nil, time.Second))
}
