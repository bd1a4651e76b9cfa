package schema_test

import (
	"errors"
	"testing"

	"pb-analyzer/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesSchema = `{
  "schemas": [{
    "schema": {
      "Entities": [
        {
          "Name": "Sales",
          "Properties": [
            {"Name": "Region", "DataType": 2048, "Column": {}},
            {"Name": "Amount", "DataType": 259, "Column": {}},
            {"Name": "Cost", "Hidden": true, "Column": {}},
            {"Name": "Margin", "Column": {"Calculated": true}},
            {"Name": "Total Sales", "Measure": {"Expression": "SUM(Sales[Amount])"}}
          ],
          "Hierarchies": [
            {"Name": "Geo", "Levels": [{"Name": "Region", "Column": {"Property": "Region"}}]}
          ]
        },
        {"Name": "DateTableTemplate_1234", "Properties": [{"Name": "Date", "Hidden": true}]},
        {"Name": "LocalDateTable_abcd", "Properties": [{"Name": "Year"}]}
      ]
    }
  }]
}`

func TestParse_SalesModel(t *testing.T) {
	c, err := schema.Parse([]byte(salesSchema))
	require.NoError(t, err)

	var keys []string
	for _, col := range c.Columns() {
		keys = append(keys, col.Key())
	}
	assert.Equal(t, []string{"Sales.Amount", "Sales.Cost", "Sales.Margin", "Sales.Region"}, keys)

	i, ok := c.LookupColumn("sales", "COST")
	require.True(t, ok)
	assert.True(t, c.Column(i).IsHidden)

	i, ok = c.LookupColumn("Sales", "Margin")
	require.True(t, ok)
	assert.True(t, c.Column(i).IsCalculated)

	m, ok := c.LookupMeasure("Sales", "Total Sales")
	require.True(t, ok)
	assert.Equal(t, "SUM(Sales[Amount])", m.Expression)
	_, ok = c.LookupColumn("Sales", "Total Sales")
	assert.False(t, ok, "measures must not appear as columns")

	h, ok := c.LookupHierarchy("Sales", "Geo")
	require.True(t, ok)
	assert.Equal(t, []schema.Level{{Name: "Region", Column: "Region"}}, h.Levels)

	assert.False(t, c.HasTable("DateTableTemplate_1234"))
	assert.False(t, c.HasTable("LocalDateTable_abcd"))
}

func TestParse_BareEntities(t *testing.T) {
	c, err := schema.Parse([]byte(`{"Entities":[{"Name":"T","Properties":[{"Name":"A"}]}]}`))
	require.NoError(t, err)
	require.Len(t, c.Columns(), 1)
	assert.Equal(t, "T.A", c.Column(0).Key())
}

func TestParse_DuplicateIdentitiesMerge(t *testing.T) {
	doc := `{"schemas":[
	  {"schema":{"Entities":[{"Name":"T","Properties":[{"Name":"A","Hidden":true}]}]}},
	  {"schema":{"Entities":[{"Name":"t","Properties":[{"Name":"a"},{"Name":"B"}]}]}}
	]}`
	c, err := schema.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, c.Columns(), 2)
	assert.Equal(t, "T.A", c.Column(0).Key())
	assert.True(t, c.Column(0).IsHidden, "first definition wins")
	assert.Equal(t, "T.B", c.Column(1).Key())
}

func TestParse_BareNameIndex(t *testing.T) {
	doc := `{"Entities":[
	  {"Name":"Sales","Properties":[{"Name":"Amount"}]},
	  {"Name":"Budget","Properties":[{"Name":"Amount"}]}
	]}`
	c, err := schema.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, c.ColumnsNamed("amount"), 2)
	assert.Empty(t, c.ColumnsNamed("Missing"))
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":            `{"schemas":`,
		"root array":          `[]`,
		"no entities":         `{"foo": 1}`,
		"schemas not array":   `{"schemas": {}}`,
		"entities not array":  `{"Entities": "x"}`,
		"table missing name":  `{"Entities":[{"Properties":[]}]}`,
		"table name empty":    `{"Entities":[{"Name":"  "}]}`,
		"property no name":    `{"Entities":[{"Name":"T","Properties":[{"Hidden":true}]}]}`,
		"property not object": `{"Entities":[{"Name":"T","Properties":[1]}]}`,
		"name not string":     `{"Entities":[{"Name":7}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := schema.Parse([]byte(doc))
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, schema.ErrMalformed))
			var pe *schema.ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestParse_EmptyModel(t *testing.T) {
	c, err := schema.Parse([]byte(`{"schemas":[{"schema":{}}]}`))
	require.NoError(t, err)
	assert.Empty(t, c.Columns())
}
