package testutil

// V6MatrixHeader is the services matrix header of the v6 profile.
var V6MatrixHeader = []interface{}{
	"codigo_servicio", "Nombre del Servicio", "Organismo", "Área que lo realiza",
	"Descripción del Servicio", "Promedio solicitudes por mes",
	"Requisitos (Normalizado)", "Ubicación (Normalizado)",
}

// V6Matrix builds the services matrix sheet from data rows laid out like
// V6MatrixHeader.
func V6Matrix(rows ...[]interface{}) Sheet {
	return Sheet{Name: "Matriz", Rows: append([][]interface{}{V6MatrixHeader}, rows...)}
}

func banner(title string, rows ...[]interface{}) [][]interface{} {
	return append([][]interface{}{{title}, {"Catálogo de servicios"}}, rows...)
}

// V6Artifacts builds the four artifact sheets of the v6 profile with two
// requirements (R001, R002) and two locations (UBI-001, UBI-002).
func V6Artifacts() []Sheet {
	return []Sheet{
		{Name: "CAT_METADATA_FUNCIONAL", Rows: banner("METADATA FUNCIONAL",
			[]interface{}{"ID_TERMINO", "TERMINO", "DEFINICION", "CAMPO_ORIGEN", "EJEMPLOS", "RESPONSABLE", "REGLAS", "CATEGORIA", "FECHA", "VERSION", "ESTADO"},
			[]interface{}{"TF-001", "Servicio", "Oferta institucional", "Nombre del Servicio", "Préstamo", "DATIC", "no registra", "Core", "2026-02-01", "1.0", "Activo"},
			[]interface{}{"", "Sin id"},
		)},
		{Name: "CAT_METADATA_TECNICA", Rows: banner("METADATA TÉCNICA",
			[]interface{}{"ID_CAMPO", "TABLA", "CAMPO", "TIPO", "LONGITUD", "NULO", "LLAVE", "DEFECTO", "DESCRIPCION", "MAPEO", "ID_TERMINO", "FECHA", "VERSION", "ESTADO"},
			[]interface{}{"TC-001", "fact_servicio", "codigo_servicio", "VARCHAR", "50", "NO", "UK", "", "Código", "codigo_servicio", "TF-001", "2026-02-01", "1.0", "Activo"},
			[]interface{}{"TC-002", "fact_servicio", "descripcion", "TEXT", "N/A", "SI", "", "", "", "", "", "", "", ""},
		)},
		{Name: "06_DIM_REQUISITO", Rows: banner("DIMENSIÓN REQUISITO",
			[]interface{}{"CODIGO", "NOMBRE_REQUISITO", "DETALLE"},
			[]interface{}{"R001", "Documento de identidad", "Original y copia"},
			[]interface{}{"R002", "Formulario", "no registra"},
		)},
		{Name: "07_DIM_UBICACION", Rows: banner("DIMENSIÓN UBICACIÓN",
			[]interface{}{"CODIGO", "NOMBRE_SEDE", "DIRECCION", "HORARIO", "TELEFONO", "CORREO_ELECT", "BARRIO", "COMUNA", "TIPO_SEDE", "ESTADO"},
			[]interface{}{"UBI-001", "CAM", "Av 2N # 10-70", "Lun-Vie 8:00-17:00", "6024000", "atencion@cali.gov.co", "San Pedro", "3", "Administrativa", "Activo"},
			[]interface{}{"UBI-002", "Biblioteca Departamental", "Cl 5 # 24A-91", "sin definir", "", "", "", "19", "Cultural", "Activo"},
		)},
	}
}
