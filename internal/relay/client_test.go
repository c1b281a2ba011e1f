package relay

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResponseOK = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <WSI4_PointRelais_RechercheResponse xmlns="http://www.mondialrelay.fr/webservice/">
      <WSI4_PointRelais_RechercheResult>
        <STAT>0</STAT>
        <PointsRelais>
          <PointRelais_Details>
            <Num>012345</Num>
            <LgAdr1>TABAC DE LA GARE</LgAdr1>
            <LgAdr3>3 PLACE DE LA GARE</LgAdr3>
            <CP>69002</CP>
            <Ville>LYON</Ville>
            <Pays>FR</Pays>
            <Latitude>45,7485</Latitude>
            <Longitude>4,8260</Longitude>
            <Distance>320</Distance>
          </PointRelais_Details>
          <PointRelais_Details>
            <Num>067890</Num>
            <LgAdr1>PRESSING BELLECOUR</LgAdr1>
            <LgAdr3>10 RUE VICTOR HUGO</LgAdr3>
            <CP>69002</CP>
            <Ville>LYON</Ville>
            <Pays>FR</Pays>
            <Latitude>45,7570</Latitude>
            <Longitude>4,8320</Longitude>
            <Distance>750</Distance>
          </PointRelais_Details>
        </PointsRelais>
      </WSI4_PointRelais_RechercheResult>
    </WSI4_PointRelais_RechercheResponse>
  </soap:Body>
</soap:Envelope>`

func TestSearchPickupPoints(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("SOAPAction"), "WSI4_PointRelais_Recherche")

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = w.Write([]byte(searchResponseOK))
	}))
	defer server.Close()

	c := NewClient(server.URL, "BDTEST13", "PrivateK")
	points, err := c.SearchPickupPoints(context.Background(), SearchParams{
		PostalCode: "69002",
		Country:    "FR",
		Limit:      10,
	})

	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "012345", points[0].ID)
	assert.Equal(t, "TABAC DE LA GARE", points[0].Name)
	assert.Equal(t, "69002", points[0].PostalCode)
	// Comma decimal separators are parsed
	assert.InDelta(t, 45.7485, points[0].Latitude, 0.0001)
	assert.InDelta(t, 4.8260, points[0].Longitude, 0.0001)
	assert.Equal(t, 320, points[0].DistanceMeters)

	// The security hash covers enseigne+country+postal+count plus the key
	sum := md5.Sum([]byte("BDTEST13FR6900210" + "PrivateK"))
	expected := strings.ToUpper(fmt.Sprintf("%x", sum))
	assert.Contains(t, gotBody, "<Security>"+expected+"</Security>")
	assert.Contains(t, gotBody, "<Enseigne>BDTEST13</Enseigne>")
	assert.Contains(t, gotBody, "<CP>69002</CP>")
}

func TestSearchPickupPoints_CarrierError(t *testing.T) {
	response := strings.Replace(searchResponseOK, "<STAT>0</STAT>", "<STAT>9</STAT>", 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	c := NewClient(server.URL, "BDTEST13", "PrivateK")
	_, err := c.SearchPickupPoints(context.Background(), SearchParams{PostalCode: "69002"})

	require.Error(t, err)
	var carrierErr *CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, "9", carrierErr.Code)
}

func TestSearchPickupPoints_Defaults(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(searchResponseOK))
	}))
	defer server.Close()

	c := NewClient(server.URL, "BDTEST13", "PrivateK")
	_, err := c.SearchPickupPoints(context.Background(), SearchParams{PostalCode: "75011"})

	require.NoError(t, err)
	assert.Contains(t, gotBody, "<Pays>FR</Pays>")
	assert.Contains(t, gotBody, "<NombreDeResultats>10</NombreDeResultats>")
}

func TestSearchPickupPoints_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, "BDTEST13", "PrivateK")
	_, err := c.SearchPickupPoints(context.Background(), SearchParams{PostalCode: "69002"})
	require.Error(t, err)
}

func TestParseCoordinate(t *testing.T) {
	assert.InDelta(t, 45.7485, parseCoordinate("45,7485"), 0.0001)
	assert.InDelta(t, 4.826, parseCoordinate(" 4.8260 "), 0.0001)
	assert.Zero(t, parseCoordinate("not-a-number"))
}
