package kbsec_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"vnmonitor/internal/market"
	kbsec "vnmonitor/internal/provider/kbsec"
)

var mockBoardResponse = map[string]any{
	"code": "OK",
	"data": []map[string]any{
		{"sym": "VCB", "ex": "HOSE", "ref": 88.0, "last": 89.5, "ceil": 94.1, "floor": 81.9, "vol": 1200500},
		{"sym": "FPT", "ex": "HOSE", "ref": 120.0, "last": 118.2, "ceil": 128.4, "floor": 111.6, "vol": 900100},
	},
}

func TestPriceBoard(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Contains(t, req.URL.Path, "/board")
			require.Equal(t, "VCB,FPT", req.URL.Query().Get("symbols"))

			buffer := &bytes.Buffer{}
			require.NoError(t, json.NewEncoder(buffer).Encode(mockBoardResponse))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(buffer),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new API client
	client, err := kbsec.NewAPIClient("test-key", kbsec.WithHTTPClient(httpClient))
	require.NoError(t, err)
	require.NotNil(t, client)

	// Act: fetch the board
	rows, err := kbsec.NewSource(client).PriceBoard(context.Background(), []string{"VCB", "FPT"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Assert: rows are unmarshalled from the mock response
	require.Equal(t, "VCB", rows[0].Symbol)
	require.Equal(t, "HOSE", rows[0].Exchange)
	require.InDelta(t, 89.5, rows[0].MatchPrice, 1e-9)
	require.Equal(t, int64(1200500), rows[0].TotalVolume)
	require.InDelta(t, 1.5, rows[0].Change(), 1e-9)
}

func TestHistoryDecodesColumnFormat(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Contains(t, req.URL.Path, "/history")
			require.Equal(t, "VNINDEX", req.URL.Query().Get("symbol"))
			require.Equal(t, "1D", req.URL.Query().Get("interval"))

			buffer := &bytes.Buffer{}
			require.NoError(t, json.NewEncoder(buffer).Encode(map[string]any{
				"code": "OK",
				"data": map[string]any{
					"t": []int64{1717977600, 1718064000},
					"o": []float64{1280.1, 1285.4},
					"h": []float64{1290.0, 1292.7},
					"l": []float64{1275.3, 1281.0},
					"c": []float64{1285.4, 1288.9},
					"v": []int64{650_000_000, 702_000_000},
				},
			}))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(buffer),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new API client
	client, err := kbsec.NewAPIClient("test-key", kbsec.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: fetch the series
	candles, err := kbsec.NewSource(client).History(context.Background(), "VNINDEX", market.HistoryRequest{Interval: "1D"})
	require.NoError(t, err)
	require.Len(t, candles, 2)

	// Assert: columns are zipped into candles
	require.Equal(t, time.Unix(1717977600, 0).UTC(), candles[0].Time)
	require.InDelta(t, 1285.4, candles[0].Close, 1e-9)
	require.InDelta(t, 1288.9, candles[1].Close, 1e-9)
	require.Equal(t, int64(702_000_000), candles[1].Volume)
}
