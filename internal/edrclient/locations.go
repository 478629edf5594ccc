package edrclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// maxLocationsBody caps how much of the locations response is buffered.
const maxLocationsBody = 8 << 20

// FetchLocations queries the collection's locations endpoint and returns
// the advertised location identifiers, parsed from the GeoJSON
// FeatureCollection the service publishes.
func FetchLocations(ctx context.Context, client *http.Client, b *RequestBuilder) ([]string, error) {
	if b.trivial {
		return nil, fmt.Errorf("trivial mode has no locations endpoint")
	}
	target := fmt.Sprintf("%s/collections/%s/locations", b.base, url.PathEscape(b.collection))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if b.authHeader != "" {
		req.Header.Set("Authorization", b.authHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch locations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch locations: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLocationsBody))
	if err != nil {
		return nil, fmt.Errorf("read locations response: %w", err)
	}
	return parseLocations(data)
}

func parseLocations(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("locations response is not valid JSON")
	}
	if gjson.GetBytes(data, "type").String() != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected locations response format")
	}

	var ids []string
	for _, id := range gjson.GetBytes(data, "features.#.properties.locationId").Array() {
		if s := id.String(); s != "" {
			ids = append(ids, s)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("locations response contains no location identifiers")
	}
	return ids, nil
}
