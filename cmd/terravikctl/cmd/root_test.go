package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var completeAnswers = []string{
	"--area", "100",
	"--implantando=true",
	"--objetivo", "crescimento",
	"--clima", "ameno",
	"--sol", "pleno",
	"--irrigacao", "semanal",
	"--pisoteio", "baixo",
	"--nivel", "saudavel",
}

func TestPlanCommandRendersJSON(t *testing.T) {
	out, err := runCLI(t, append([]string{"plan"}, completeAnswers...)...)
	require.NoError(t, err)

	var result domain.CalculatorResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Plan, 1)
	assert.Equal(t, domain.ProductSKURooting, result.Plan[0].SKU)
	assert.Equal(t, 5000, result.Plan[0].NeedGrams)
}

func TestPlanCommandRendersYAMLWithJSONFieldNames(t *testing.T) {
	out, err := runCLI(t, append([]string{"plan", "-o", "yaml"}, completeAnswers...)...)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "area_m2")
	assert.Contains(t, doc, "plan")
}

func TestPlanCommandReportsMissingAnswers(t *testing.T) {
	_, err := runCLI(t, "plan", "--area", "50")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "implantando")
	assert.NotContains(t, err.Error(), "area_m2")
}

func TestBumpCommand(t *testing.T) {
	out, err := runCLI(t, "bump", "mock-p1")
	require.NoError(t, err)

	var resp domain.OrderBumpResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Bump)
	assert.Equal(t, "mock-p2", resp.Bump.ID)

	out, err = runCLI(t, "bump")
	require.NoError(t, err)
	assert.Contains(t, out, `"bump": null`)
}

func TestShippingCommandUsesConfiguredLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/01310100/json/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cep":"01310-100","logradouro":"Avenida Paulista","bairro":"Bela Vista","localidade":"São Paulo","uf":"SP"}`))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("CEP_BASE_URL", srv.URL)
	t.Setenv("CONFIG_FILE", "")

	out, err := runCLI(t, "shipping", "--cep", "01310-100", "--subtotal", "200", "--weight", "1")
	require.NoError(t, err)

	var resp domain.ShippingQuoteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Address)
	assert.Equal(t, "SP", resp.Address.State)
	require.NotEmpty(t, resp.Options)
	assert.True(t, resp.FreeShipping.Achieved)
}

func TestShippingCommandRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "shipping", "--cep", "123")
	assert.Error(t, err)

	_, err = runCLI(t, "shipping", "--cep", "01310100", "--subtotal", "abc")
	assert.Error(t, err)
}

func TestUnsupportedOutputFormat(t *testing.T) {
	_, err := runCLI(t, "bump", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONFIG_FILE", "")

	_, err := runCLI(t, "migrate", "version")
	assert.ErrorIs(t, err, errNoDatabase)
}
