package relay

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client calls the Mondial Relay SOAP web service and exposes the parts the
// storefront needs as plain Go types, so the frontend only ever speaks JSON.
type Client struct {
	endpoint   string
	enseigne   string
	privateKey string
	httpClient *http.Client
}

// NewClient creates a Mondial Relay client.
func NewClient(endpoint, enseigne, privateKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		enseigne:   enseigne,
		privateKey: privateKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SearchParams narrows a pickup point search.
type SearchParams struct {
	PostalCode string
	Country    string // ISO 3166-1 alpha-2, e.g. "FR"
	Limit      int    // Max results, capped at 30 by the carrier
}

// PickupPoint is one Mondial Relay point relais.
type PickupPoint struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	PostalCode     string  `json:"postalCode"`
	Country        string  `json:"country"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	DistanceMeters int     `json:"distanceMeters"`
}

// CarrierError is a non-zero STAT code returned by Mondial Relay.
type CarrierError struct {
	Code string
}

func (e *CarrierError) Error() string {
	return fmt.Sprintf("mondialrelay: carrier returned error code %s", e.Code)
}

const soapAction = "http://www.mondialrelay.fr/webservice/WSI4_PointRelais_Recherche"

// SearchPickupPoints runs a WSI4_PointRelais_Recherche search.
func (c *Client) SearchPickupPoints(ctx context.Context, params SearchParams) ([]PickupPoint, error) {
	country := params.Country
	if country == "" {
		country = "FR"
	}
	limit := params.Limit
	if limit <= 0 || limit > 30 {
		limit = 10
	}

	nb := strconv.Itoa(limit)
	// The carrier requires an MD5 hash of the request parameters, in wire
	// order, followed by the merchant private key.
	security := c.securityHash(c.enseigne, country, params.PostalCode, nb)

	envelope := fmt.Sprintf(searchEnvelope,
		xmlEscape(c.enseigne), xmlEscape(country), xmlEscape(params.PostalCode), nb, security)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mondialrelay: API request failed: %d - %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := parsed.Body.Response.Result
	if result.Stat != "0" {
		return nil, &CarrierError{Code: result.Stat}
	}

	points := make([]PickupPoint, 0, len(result.Points))
	for _, p := range result.Points {
		points = append(points, PickupPoint{
			ID:             strings.TrimSpace(p.Num),
			Name:           strings.TrimSpace(p.LgAdr1),
			Address:        strings.TrimSpace(p.LgAdr3),
			City:           strings.TrimSpace(p.Ville),
			PostalCode:     strings.TrimSpace(p.CP),
			Country:        strings.TrimSpace(p.Pays),
			Latitude:       parseCoordinate(p.Latitude),
			Longitude:      parseCoordinate(p.Longitude),
			DistanceMeters: atoiOrZero(p.Distance),
		})
	}
	return points, nil
}

// securityHash computes the uppercase MD5 of the concatenated parameters
// plus the private key, per the Mondial Relay API contract.
func (c *Client) securityHash(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "") + c.privateKey))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

// parseCoordinate handles the carrier's comma decimal separator.
func parseCoordinate(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

const searchEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <WSI4_PointRelais_Recherche xmlns="http://www.mondialrelay.fr/webservice/">
      <Enseigne>%s</Enseigne>
      <Pays>%s</Pays>
      <CP>%s</CP>
      <NombreDeResultats>%s</NombreDeResultats>
      <Security>%s</Security>
    </WSI4_PointRelais_Recherche>
  </soap:Body>
</soap:Envelope>`

type searchResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result struct {
				Stat   string `xml:"STAT"`
				Points []struct {
					Num       string `xml:"Num"`
					LgAdr1    string `xml:"LgAdr1"`
					LgAdr3    string `xml:"LgAdr3"`
					CP        string `xml:"CP"`
					Ville     string `xml:"Ville"`
					Pays      string `xml:"Pays"`
					Latitude  string `xml:"Latitude"`
					Longitude string `xml:"Longitude"`
					Distance  string `xml:"Distance"`
				} `xml:"PointsRelais>PointRelais_Details"`
			} `xml:"WSI4_PointRelais_RechercheResult"`
		} `xml:"WSI4_PointRelais_RechercheResponse"`
	} `xml:"Body"`
}
