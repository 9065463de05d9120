package foodfacts

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedClient(t *testing.T) *Client {
	t.Helper()

	client := NewClient(Config{BaseURL: "https://off.test"})
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestGetProduct_Found(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://off.test/api/v0/product/4311501043166.json",
		httpmock.NewStringResponder(http.StatusOK, `{
			"status": 1,
			"product": {
				"product_name": "Butter",
				"product_name_de": "Deutsche Markenbutter",
				"image_url": "https://images.test/butter.jpg"
			}
		}`))

	product, err := client.GetProduct(context.Background(), "4311501043166")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Deutsche Markenbutter", product.Name, "localized name wins when present")
	assert.Equal(t, "https://images.test/butter.jpg", product.ImageURL)
}

func TestGetProduct_FallsBackToGenericName(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://off.test/api/v0/product/123.json",
		httpmock.NewStringResponder(http.StatusOK, `{
			"status": 1,
			"product": {"product_name": "Oat Milk"}
		}`))

	product, err := client.GetProduct(context.Background(), "123")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Oat Milk", product.Name)
	assert.Empty(t, product.ImageURL)
}

func TestGetProduct_NotFound(t *testing.T) {
	client := newMockedClient(t)

	// The API reports a miss either as HTTP 404 or as status 0 in a 200 body.
	httpmock.RegisterResponder(http.MethodGet, "https://off.test/api/v0/product/111.json",
		httpmock.NewStringResponder(http.StatusNotFound, `{"status": 0, "status_verbose": "product not found"}`))
	httpmock.RegisterResponder(http.MethodGet, "https://off.test/api/v0/product/222.json",
		httpmock.NewStringResponder(http.StatusOK, `{"status": 0, "status_verbose": "product not found"}`))

	for _, barcode := range []string{"111", "222"} {
		product, err := client.GetProduct(context.Background(), barcode)
		require.NoError(t, err, "barcode %s", barcode)
		assert.Nil(t, product, "barcode %s", barcode)
	}
}

func TestGetProduct_UsesCache(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://off.test/api/v0/product/333.json",
		httpmock.NewStringResponder(http.StatusOK, `{"status": 1, "product": {"product_name": "Joghurt"}}`))

	_, err := client.GetProduct(context.Background(), "333")
	require.NoError(t, err)
	_, err = client.GetProduct(context.Background(), "333")
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "second lookup should be served from cache")
}

func TestGetProduct_ServerError(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://off.test/api/v0/product/444.json",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{}`))

	_, err := client.GetProduct(context.Background(), "444")
	assert.Error(t, err)
}

func TestFetchImage(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, "https://images.test/butter.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte{0xff, 0xd8, 0xff}))
	httpmock.RegisterResponder(http.MethodGet, "https://images.test/missing.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	data, err := client.FetchImage(context.Background(), "https://images.test/butter.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

	_, err = client.FetchImage(context.Background(), "https://images.test/missing.jpg")
	assert.Error(t, err)
}
