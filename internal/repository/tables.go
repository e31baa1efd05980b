package repository

// Catalog table names.
const (
	TableDomain       = "dim_dominio"
	TableArea         = "dim_area"
	TableChannel      = "dim_canal"
	TableTool         = "dim_herramienta_tic"
	TableStatus       = "dim_estado"
	TableLocation     = "dim_ubicacion"
	TableRequirement  = "dim_requisito"
	TableService      = "fact_servicio"
	TableServiceReq   = "rel_servicio_requisito"
	TableServiceLoc   = "rel_servicio_ubicacion"
	TableFunctionalMD = "cat_metadata_funcional"
	TableTechnicalMD  = "cat_metadata_tecnica"
)

// truncateOrder lists every catalog table, children first.
var truncateOrder = []string{
	TableServiceReq,
	TableServiceLoc,
	TableService,
	TableRequirement,
	TableLocation,
	TableTool,
	TableArea,
	TableChannel,
	TableStatus,
	TableDomain,
	TableFunctionalMD,
	TableTechnicalMD,
}

// TableLabel pairs a table with its summary label.
type TableLabel struct {
	Table string
	Label string
}

// SummaryTables is the order row counts are reported in.
var SummaryTables = []TableLabel{
	{TableService, "Servicios"},
	{TableDomain, "Dominios"},
	{TableArea, "Áreas"},
	{TableChannel, "Canales"},
	{TableTool, "Herramientas TIC"},
	{TableStatus, "Estados"},
	{TableRequirement, "Requisitos"},
	{TableLocation, "Ubicaciones"},
	{TableServiceReq, "Servicio-Requisito"},
	{TableServiceLoc, "Servicio-Ubicación"},
	{TableFunctionalMD, "Metadata funcional"},
	{TableTechnicalMD, "Metadata técnica"},
}

var (
	functionalColumns = []string{
		"id_termino", "termino", "definicion_negocio", "campo_origen_matriz", "ejemplos",
		"responsable", "reglas_negocio", "categoria", "fecha_actualizacion", "version", "estado",
	}
	technicalColumns = []string{
		"id_campo", "tabla", "campo", "tipo_dato", "longitud", "nulo", "llave", "valor_defecto",
		"descripcion", "mapeo_matriz", "id_termino_funcional", "fecha_actualizacion", "version", "estado",
	}
	requirementColumns = []string{
		"id_requisito", "codigo", "nombre_requisito", "detalle", "tipo_soporte", "categoria",
	}
	locationColumns = []string{
		"codigo", "nombre_sede", "direccion", "horario", "horario_general", "telefono",
		"correo_elect", "barrio", "comuna", "tipo_sede", "estado", "id_dominio",
	}
	requirementLinkColumns = []string{
		"id_servicio", "id_requisito", "codigo_servicio", "codigo_requisito", "es_obligatorio", "orden_presentacion",
	}
	locationLinkColumns = []string{
		"id_servicio", "id_ubicacion", "codigo_servicio", "es_sede_principal",
	}
)
