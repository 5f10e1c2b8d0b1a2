package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetClient(t *testing.T) {
	var updates []RowUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/sheets/7/version":
			_, _ = w.Write([]byte(`{"version": 12}`))
		case r.Method == http.MethodGet && r.URL.Path == "/sheets/7":
			assert.Equal(t, "1,2", r.URL.Query().Get("columnIds"))
			_, _ = w.Write([]byte(`{"id":7,"version":12,"rows":[{"id":100,"rowNumber":1,"cells":[{"columnId":1,"value":"M1"},{"columnId":2,"value":42}]}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/sheets/7/rows/100":
			_, _ = w.Write([]byte(`{"id":100,"cells":[{"columnId":1,"value":"M1"},{"columnId":2}]}`))
		case r.Method == http.MethodPut && r.URL.Path == "/sheets/7/rows":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updates))
			_, _ = w.Write([]byte(`{"message":"SUCCESS","resultCode":0}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewSheetClient(srv.URL+"/", "secret", 5*time.Second, &testLogger{t: t}, nil)
	ctx := context.Background()

	version, err := client.GetSheetVersion(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), version)

	sheet, err := client.GetSheet(ctx, 7, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, int64(100), sheet.Rows[0].ID)
	assert.Equal(t, "M1", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "42", sheet.Rows[0].Cells[1].String())

	row, err := client.GetRow(ctx, 7, 100)
	require.NoError(t, err)
	assert.Equal(t, "", row.Cells[1].String())

	require.NoError(t, client.UpdateRows(ctx, 7, []RowUpdate{{ID: 100, Cells: []CellUpdate{{ColumnID: 2, Value: ""}}}}))
	require.Len(t, updates, 1)
	assert.Equal(t, int64(100), updates[0].ID)
	assert.Equal(t, "", updates[0].Cells[0].Value)
}

func TestSheetClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewSheetClient(srv.URL, "secret", 5*time.Second, &testLogger{t: t}, nil)
	_, err := client.GetSheetVersion(context.Background(), 7)
	assert.ErrorContains(t, err, "status=503")
}

func TestCellUpdateKeepsEmptyValue(t *testing.T) {
	data, err := json.Marshal(CellUpdate{ColumnID: 5, Value: ""})
	require.NoError(t, err)
	assert.JSONEq(t, `{"columnId":5,"value":""}`, string(data))
}
