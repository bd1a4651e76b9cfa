package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-analyzer/internal/powerbi"
	"pb-analyzer/internal/source"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDir_PairsDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales.schema.json", `{"Entities":[]}`)
	writeFile(t, dir, "sales.exploration.json", `{"sections":[]}`)
	writeFile(t, dir, "hr.schema.json", `{"Entities":[]}`)
	writeFile(t, dir, "orphan.exploration.json", `{}`)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.schema.json"), 0o755))

	src := source.NewDir(dir)
	items, err := src.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []source.Item{{ID: "hr", Name: "hr"}, {ID: "sales", Name: "sales"}}, items)

	def, err := src.Fetch(context.Background(), items[1])
	require.NoError(t, err)
	assert.Equal(t, "sales", def.ReportID)
	assert.JSONEq(t, `{"Entities":[]}`, string(def.Schema))
	assert.JSONEq(t, `{"sections":[]}`, string(def.Exploration))

	def, err = src.Fetch(context.Background(), items[0])
	require.NoError(t, err)
	assert.Nil(t, def.Exploration)

	_, err = src.Fetch(context.Background(), source.Item{ID: "orphan"})
	assert.ErrorIs(t, err, source.ErrUnknownItem)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "q3.schema.json", `{"Entities":[]}`)
	writeFile(t, dir, "layout.json", `{"sections":[]}`)

	src := source.NewFiles(filepath.Join(dir, "q3.schema.json"), filepath.Join(dir, "layout.json"))
	items, err := src.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []source.Item{{ID: "q3", Name: "q3"}}, items)

	def, err := src.Fetch(context.Background(), items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"sections":[]}`, string(def.Exploration))

	_, err = source.NewFiles(filepath.Join(dir, "missing.json"), "").Fetch(context.Background(), items[0])
	assert.Error(t, err)
}

func TestReadEmbedCodes(t *testing.T) {
	in := "\ufeffReport name,Workspace,Published by,Status,Embed code,Created\n" +
		"Sales,Finance,Dana,Active,https://app.powerbi.com/view?r=abc,2024-06-01\n" +
		"HR,People,Lee,Active,https://app.powerbi.com/view?r=def,2024-06-02\n"

	headers, rows, err := source.ReadEmbedCodes(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "Report name", headers[0])
	require.Len(t, rows, 2)
	assert.Equal(t, "https://app.powerbi.com/view?r=def", rows[1][source.EmbedURLColumn])

	_, rows, err = source.ReadEmbedCodes(strings.NewReader("a,b,c,d,e,f\nshort,row\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"short", "row", "", "", "", ""}, rows[0])

	_, _, err = source.ReadEmbedCodes(strings.NewReader(""))
	assert.Error(t, err)
}

func TestEmbed_List(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "codes.csv", "Report name,Workspace,Published by,Status,Embed code,Created\n"+
		"Sales,Finance,Dana,Active,https://app.powerbi.com/view?r=abc,2024-06-01\n")

	src := source.NewEmbed(powerbi.NewClient(nil), filepath.Join(dir, "codes.csv"))
	items, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Sales", items[0].Name)
	assert.Equal(t, "https://app.powerbi.com/view?r=abc", items[0].ID)
	assert.Len(t, items[0].Row, 6)
	assert.Equal(t, "Embed code", src.Headers()[source.EmbedURLColumn])
}

func TestEmbed_ShortRowFailsAlone(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "codes.csv", "Report name,Workspace,Published by,Status,Embed code,Created\n"+
		"A,Finance,Dana,Active,https://app.powerbi.com/view?r=abc,2024-06-01\n"+
		"B,Finance,Dana\n"+
		"C,People,Lee,Active,https://app.powerbi.com/view?r=def,2024-06-02\n")

	src := source.NewEmbed(powerbi.NewClient(nil), filepath.Join(dir, "codes.csv"))
	items, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "B", items[1].Name)
	assert.Empty(t, items[1].ID)
	assert.Len(t, items[1].Row, 6)
	assert.Equal(t, "https://app.powerbi.com/view?r=def", items[2].ID)

	_, err = src.Fetch(context.Background(), items[1])
	assert.True(t, errors.Is(err, source.ErrUnknownItem))
}

func TestOrg_ListThenFetch(t *testing.T) {
	var srv *httptest.Server
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1.0/myorg/admin/widelySharedArtifacts/linksSharedToWholeOrganization", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{
			"@odata.context": srv.URL + "/v1.0/myorg/$metadata",
			"ArtifactAccessEntities": []any{
				map[string]any{"artifactId": "r1", "displayName": "Sales"},
				map[string]any{"artifactId": "r2", "displayName": "HR"},
			},
		})
	})
	mux.HandleFunc("GET /v1.0/myorg/admin/widelySharedArtifacts/publishedToWeb", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"ArtifactAccessEntities": []any{map[string]any{"artifactId": "r2"}}})
	})
	mux.HandleFunc("POST /metadata/access/reports/r2/pushaccess", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"entityKey": map[string]any{"id": "r2"}, "relatedEntityKeys": []any{map[string]any{"id": 1, "type": 4}}})
	})
	mux.HandleFunc("POST /explore/conceptualschema", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"Entities": []any{}})
	})
	mux.HandleFunc("GET /explore/reports/r2/exploration", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"sections": []any{}})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := powerbi.NewClient(nil, powerbi.WithAPIBase(srv.URL))
	src := source.NewOrg(client, true)

	_, err := src.Fetch(context.Background(), source.Item{ID: "r2"})
	require.Error(t, err, "fetch before list")

	items, err := src.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []source.Item{{ID: "r2", Name: "HR", SharedBy: "Unknown Sharer", PublishedToWeb: true}}, items)

	def, err := src.Fetch(context.Background(), items[0])
	require.NoError(t, err)
	assert.Equal(t, "1", def.ModelID)
}

type fakeS3 struct {
	objects map[string]string
	pages   [][]string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := 0
	if in.ContinuationToken != nil {
		page = len(*in.ContinuationToken)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(page+1 < len(f.pages))}
	for _, k := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if page+1 < len(f.pages) {
		out.NextContinuationToken = aws.String(strings.Repeat("x", page+1))
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3_ListsPairsAcrossPages(t *testing.T) {
	api := &fakeS3{
		objects: map[string]string{
			"defs/sales.schema.json":      `{"Entities":[]}`,
			"defs/sales.exploration.json": `{"sections":[]}`,
		},
		pages: [][]string{
			{"defs/", "defs/sales.schema.json"},
			{"defs/sales.exploration.json", "defs/archive/old.schema.json"},
		},
	}

	bucket, prefix, err := source.ParseS3URL("s3://reports/defs")
	require.NoError(t, err)
	assert.Equal(t, "reports", bucket)
	assert.Equal(t, "defs/", prefix)

	src := source.NewS3WithAPI(api, bucket, prefix)
	items, err := src.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []source.Item{{ID: "sales", Name: "sales"}}, items)

	def, err := src.Fetch(context.Background(), items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"sections":[]}`, string(def.Exploration))
}

func TestParseS3URL_Rejects(t *testing.T) {
	for _, bad := range []string{"reports/defs", "https://reports/defs", "s3:///defs"} {
		_, _, err := source.ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}
