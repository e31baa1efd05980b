package artifacts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"catalogo.cali.gov.co/etl/internal/domain"
	"catalogo.cali.gov.co/etl/internal/refdata"
	"catalogo.cali.gov.co/etl/internal/spreadsheet"
	"catalogo.cali.gov.co/etl/internal/testutil"
)

func newReader(t *testing.T) *Reader {
	t.Helper()
	p, err := refdata.Load("v6")
	require.NoError(t, err)
	r, err := NewReader(p)
	require.NoError(t, err)
	return r
}

func openWorkbook(t *testing.T, sheets ...testutil.Sheet) *spreadsheet.Workbook {
	t.Helper()
	wb, err := spreadsheet.Open(testutil.WriteWorkbook(t, "artefactos.xlsx", sheets...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func TestNewReader_ProfileWithoutArtifacts(t *testing.T) {
	p, err := refdata.Load("v5")
	require.NoError(t, err)
	_, err = NewReader(p)
	require.ErrorIs(t, err, ErrNoLayout)
}

func TestReader_Read(t *testing.T) {
	res, err := newReader(t).Read(openWorkbook(t, testutil.V6Artifacts()...))
	require.NoError(t, err)

	require.Len(t, res.Functional, 1)
	term := res.Functional[0]
	require.Equal(t, "TF-001", term.ID)
	require.Equal(t, "Servicio", *term.Term)
	require.Nil(t, term.BusinessRules)
	require.Equal(t, "Activo", *term.State)

	require.Len(t, res.Technical, 2)
	require.NotNil(t, res.Technical[0].Length)
	require.EqualValues(t, 50, *res.Technical[0].Length)
	require.Nil(t, res.Technical[1].Length, "non-numeric length is NULL")
	require.Nil(t, res.Technical[1].State)

	codes := make([]string, 0, len(res.Requirements))
	for _, r := range res.Requirements {
		codes = append(codes, r.Code)
		require.Equal(t, r.Code, r.ID)
	}
	require.Equal(t, []string{"R001", "R002", "R999"}, codes, "extra requirement appended")
	require.Nil(t, res.Requirements[1].Detail)

	require.Len(t, res.Locations, 2)
	cam := res.Locations[0]
	require.Equal(t, "UBI-001", cam.Code)
	require.Equal(t, "Lun-Vie 8:00-17:00", *cam.Schedule)
	require.Equal(t, *cam.Schedule, *cam.GeneralSchedule)
	require.Nil(t, cam.DomainKey)
	require.Nil(t, res.Locations[1].Schedule)

	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, domain.DiagMissingKey, res.Diagnostics[0].Code)
	require.Equal(t, 5, res.Diagnostics[0].Row)
}

func TestReader_DuplicateKeys(t *testing.T) {
	sheets := testutil.V6Artifacts()
	req := &sheets[2]
	req.Rows = append(req.Rows, []interface{}{"R001", "Repetido", ""})

	res, err := newReader(t).Read(openWorkbook(t, sheets...))
	require.NoError(t, err)
	require.Len(t, res.Requirements, 3)
	require.Equal(t, "Documento de identidad", res.Requirements[0].Name)

	var dup []domain.Diagnostic
	for _, d := range res.Diagnostics {
		if d.Code == domain.DiagDuplicateCode {
			dup = append(dup, d)
		}
	}
	require.Len(t, dup, 1)
	require.Equal(t, "06_DIM_REQUISITO/R001", dup[0].Key)
}

func TestReader_MissingSheet(t *testing.T) {
	sheets := testutil.V6Artifacts()[:3]
	res, err := newReader(t).Read(openWorkbook(t, sheets...))
	require.ErrorIs(t, err, spreadsheet.ErrSheetNotFound)

	require.Len(t, res.Failures, 1)
	require.Equal(t, "07_DIM_UBICACION", res.Failures[0].Sheet)
	require.Empty(t, res.Locations)
	require.Len(t, res.Functional, 1)
	require.Len(t, res.Technical, 2)
	require.Len(t, res.Requirements, 3)
}

func TestReader_FailedSheetsAreIndependent(t *testing.T) {
	res, err := newReader(t).Read(openWorkbook(t, testutil.V6Artifacts()[1:]...))
	require.ErrorIs(t, err, spreadsheet.ErrSheetNotFound)

	require.Len(t, res.Failures, 1)
	require.Equal(t, "CAT_METADATA_FUNCIONAL", res.Failures[0].Sheet)
	require.Empty(t, res.Functional)
	require.Len(t, res.Technical, 2)
	require.Len(t, res.Requirements, 3)
	require.Len(t, res.Locations, 2)
	require.Empty(t, res.Diagnostics, "the row without id lived in the missing sheet")
}

func TestReader_MissingColumns(t *testing.T) {
	sheets := testutil.V6Artifacts()
	sheets[3].Rows[2] = []interface{}{"CODIGO", "NOMBRE_SEDE"}

	res, err := newReader(t).Read(openWorkbook(t, sheets...))
	require.Error(t, err)
	require.Contains(t, err.Error(), "07_DIM_UBICACION")
	require.Contains(t, err.Error(), "DIRECCION")

	require.Len(t, res.Failures, 1)
	require.Empty(t, res.Locations)
	require.Len(t, res.Requirements, 3)
	require.NoError(t, Result{}.Err())
}
