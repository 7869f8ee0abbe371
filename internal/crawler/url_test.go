package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCatalogURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{
			"clean url",
			"https://www.mercadolibre.com.ar/foco-led/p/MLA19000001",
			"https://www.mercadolibre.com.ar/foco-led/p/MLA19000001",
			true,
		},
		{
			"tracking suffix stripped",
			"https://www.mercadolibre.com.ar/foco-led/p/MLA19000001/s?searchVariation=1#reco_item_pos",
			"https://www.mercadolibre.com.ar/foco-led/p/MLA19000001",
			true,
		},
		{
			"not a catalog page",
			"https://www.mercadolibre.com.ar/categorias",
			"https://www.mercadolibre.com.ar/categorias",
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeCatalogURL(tc.in)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCatalogID(t *testing.T) {
	t.Parallel()

	id, ok := CatalogID("https://www.mercadolibre.com.ar/foco-led/p/MLA19000001")
	require.True(t, ok)
	require.Equal(t, "MLA19000001", id)

	_, ok = CatalogID("https://www.mercadolibre.com.ar/categorias")
	require.False(t, ok)
}
