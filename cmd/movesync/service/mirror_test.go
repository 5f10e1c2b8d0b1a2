package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshIsIdempotent(t *testing.T) {
	sheet := newFakeSheet(sheetMove("M1", 101, "Yard", "Rail", ""))
	mirror := NewMirror(sheet, logger.Discard(), nil)
	ctx := context.Background()

	first, err := mirror.Refresh(ctx, false)
	require.NoError(t, err)
	second, err := mirror.Refresh(ctx, false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, sheet.movesCalls, "unchanged version must not refetch rows")
	assert.Equal(t, 2, sheet.versionCalls)

	_, err = mirror.Refresh(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, sheet.movesCalls, "forced refresh refetches")
}

func TestRefreshReplacesWholeSnapshot(t *testing.T) {
	sheet := newFakeSheet(
		sheetMove("M1", 101, "Yard", "Rail", ""),
		sheetMove("M2", 102, "Yard", "Rail", ""),
	)
	mirror := NewMirror(sheet, logger.Discard(), nil)
	ctx := context.Background()

	_, err := mirror.Refresh(ctx, false)
	require.NoError(t, err)

	sheet.mu.Lock()
	sheet.rows = []models.Move{sheetMove("M3", 103, "Rail", "Yard", "")}
	sheet.version = 7
	sheet.mu.Unlock()

	snap, err := mirror.Refresh(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, int64(7), snap.Version())
	assert.Equal(t, int64(7), mirror.Version())
	assert.Equal(t, 1, snap.Len())
	_, ok := snap.Get("M1")
	assert.False(t, ok)
	_, ok = snap.Get("M3")
	assert.True(t, ok)
}

func TestRefreshErrorKeepsPreviousSnapshot(t *testing.T) {
	sheet := newFakeSheet(sheetMove("M1", 101, "Yard", "Rail", ""))
	mirror := NewMirror(sheet, logger.Discard(), nil)
	ctx := context.Background()

	before, err := mirror.Refresh(ctx, false)
	require.NoError(t, err)

	sheet.versionErr = errors.New("503 from sheet")
	_, err = mirror.Refresh(ctx, true)
	require.Error(t, err)
	assert.ErrorContains(t, err, "503 from sheet")
	assert.Same(t, before, mirror.Snapshot())
}

func TestConcurrentRefreshFetchesOnce(t *testing.T) {
	sheet := newFakeSheet(sheetMove("M1", 101, "Yard", "Rail", ""))
	mirror := NewMirror(sheet, logger.Discard(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mirror.Refresh(context.Background(), false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sheet.movesCalls)
}

func TestPublishReplacesOneMove(t *testing.T) {
	sheet := newFakeSheet(sheetMove("M1", 101, "Yard", "Rail", ""))
	mirror := NewMirror(sheet, logger.Discard(), nil)

	before, err := mirror.Refresh(context.Background(), false)
	require.NoError(t, err)

	claimed := sheetMove("M1", 101, "Yard", "Rail", "BMKJ")
	claimed.DriverID = testDriver
	mirror.Publish(claimed)

	got, _ := mirror.Snapshot().Get("M1")
	assert.Equal(t, testDriver, got.DriverID)
	orig, _ := before.Get("M1")
	assert.Empty(t, orig.DriverID)
}
