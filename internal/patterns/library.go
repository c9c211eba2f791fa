// Package patterns holds the compiled regular expression corpus, format and
// checksum validators, date and amount parsers, keyword context heuristics
// and field scoring used by every extractor.
//
// A Library is built once and is safe for concurrent use; it holds no
// mutable state after construction.
package patterns

import (
	"regexp"
	"sync"

	"notaria/pkg/models"
)

// Config holds the scoring and heuristic knobs of a Library.
type Config struct {
	// BaseConfidence is the starting confidence per field type.
	BaseConfidence map[models.FieldType]float64

	// DefaultConfidence applies to field types missing from BaseConfidence.
	DefaultConfidence float64

	// InvalidPenalty multiplies the confidence of fields that fail validation.
	InvalidPenalty float64

	// ContextWindow is the maximum distance, in characters, between a
	// candidate and the keyword that disambiguates it.
	ContextWindow int

	// CriticalTypes and CriticalNames earn the overall confidence bonus.
	CriticalTypes []models.FieldType
	CriticalNames []string

	// CriticalBonus is added once per critical field present, up to CriticalBonusCap.
	CriticalBonus    float64
	CriticalBonusCap float64

	// DefaultRoles are assigned, in order of appearance, to ID numbers
	// with no role keyword nearby.
	DefaultRoles []string
}

// DefaultConfig returns the standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		BaseConfidence: map[models.FieldType]float64{
			models.FieldCedula:    0.95,
			models.FieldRUC:       0.95,
			models.FieldPlaca:     0.9,
			models.FieldFecha:     0.9,
			models.FieldMonto:     0.85,
			models.FieldDireccion: 0.75,
		},
		DefaultConfidence: 0.7,
		InvalidPenalty:    0.5,
		ContextWindow:     100,
		CriticalTypes:     []models.FieldType{models.FieldCedula, models.FieldRUC},
		CriticalNames:     []string{"valor_operacion", "precio", "cuantia"},
		CriticalBonus:     0.05,
		CriticalBonusCap:  0.1,
		DefaultRoles:      []string{RoleComprador, RoleVendedor},
	}
}

// Party roles recognised by the context heuristic.
const (
	RoleComprador  = "comprador"
	RoleVendedor   = "vendedor"
	RoleDonante    = "donante"
	RoleDonatario  = "donatario"
	RoleOtorgante  = "otorgante"
	RoleDeclarante = "declarante"
	RoleSocio      = "socio"
	RoleFiduciario = "fideicomitente"
)

const (
	nameToken   = `[A-ZÁÉÍÓÚÑÜ]{2,}`
	nameSpacing = `[ \t]+`
	ordinal     = `PRIMERA|SEGUNDA|TERCERA|CUARTA|QUINTA|SEXTA|S[EÉ]PTIMA|OCTAVA|NOVENA|D[EÉ]CIMA|UND[EÉ]CIMA|DUOD[EÉ]CIMA|VIG[EÉ]SIMA|TRIG[EÉ]SIMA|CUADRAG[EÉ]SIMA|QUINCUAG[EÉ]SIMA|SEXAG[EÉ]SIMA|SEPTUAG[EÉ]SIMA|OCTOG[EÉ]SIMA|NONAG[EÉ]SIMA`
	numberLabel = `(?:N[°ºO]\.?|N[UÚ]MERO|NRO\.?|#)?`
	entityToken = `[A-ZÁÉÍÓÚÑ0-9&][A-ZÁÉÍÓÚÑ0-9&\-]*`
)

// Library is the compiled regex corpus together with its scoring config.
// Regular expressions are exported read-only so extractors can run their own
// passes; capture group 1, when present, holds the value.
type Library struct {
	cfg Config

	Cedula         *regexp.Regexp
	RUC            *regexp.Regexp
	Pasaporte      *regexp.Regexp
	Placa          *regexp.Regexp
	Telefono       *regexp.Regexp
	Email          *regexp.Regexp
	FechaTexto     *regexp.Regexp
	FechaNumero    *regexp.Regexp
	Monto          *regexp.Regexp
	Nombre         *regexp.Regexp
	Marca          *regexp.Regexp
	Modelo         *regexp.Regexp
	Anio           *regexp.Regexp
	VIN            *regexp.Regexp
	CodigoMotor    *regexp.Regexp
	EntidadSufijo  *regexp.Regexp
	EntidadPrefijo *regexp.Regexp
	Provincia      *regexp.Regexp
	Canton         *regexp.Regexp
	Notaria        *regexp.Regexp
	Escritura      *regexp.Regexp
	Repertorio     *regexp.Regexp
	Folio          *regexp.Regexp
	Articulo29     *regexp.Regexp
	FormaPago      *regexp.Regexp
	Direccion      *regexp.Regexp
	Nacionalidad   *regexp.Regexp
	Declarante     *regexp.Regexp
	Objeto         *regexp.Regexp

	// Keyword sets for context disambiguation.
	CedulaKeywords         *Keywords
	RUCKeywords            *Keywords
	RoleKeywords           []*Keywords
	MotorKeywords          *Keywords
	ChasisKeywords         *Keywords
	PlacaKeywords          *Keywords
	AnioKeywords           *Keywords
	PrecioKeywords         *Keywords
	ValorOperacionKeywords *Keywords
	CuantiaKeywords        *Keywords
	TransferKeywords       *Keywords
	ColorKeywords          *Keywords
	Colores                *Keywords
	Combustibles           *Keywords
	Transmisiones          *Keywords
	PagoKeywords           *Keywords
	DomainKeywords         *Keywords
}

// New compiles the corpus. It panics only if a built-in expression is
// malformed, which is a programming error.
func New(cfg Config) *Library {
	l := &Library{cfg: cfg}

	l.Cedula = regexp.MustCompile(`\b(\d{9}-?\d)\b`)
	l.RUC = regexp.MustCompile(`\b(\d{13})\b`)
	l.Pasaporte = regexp.MustCompile(`(?i:PASAPORTE)[ \t]*(?i:` + numberLabel + `)[ \t]*:?[ \t]*([A-Z0-9]{6,12})\b`)
	l.Placa = regexp.MustCompile(`\b([A-Z]{3}-?\d{3,4}|[A-Z]{2}-?\d{4,5})\b`)
	l.Telefono = regexp.MustCompile(`(?:(?:\+593|\b593)[ \t-]?|\b0)(9\d{8}|[2-7]\d{7})\b`)
	l.Email = regexp.MustCompile(`\b([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`)
	l.FechaTexto = regexp.MustCompile(`(?i)\b(\d{1,2}[ \t]+DE[ \t]+(?:ENERO|FEBRERO|MARZO|ABRIL|MAYO|JUNIO|JULIO|AGOSTO|SEPTIEMBRE|SETIEMBRE|OCTUBRE|NOVIEMBRE|DICIEMBRE)[ \t]+DEL?[ \t]+\d{4})\b`)
	l.FechaNumero = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{4}|\d{4}[/-]\d{1,2}[/-]\d{1,2})\b`)
	l.Monto = regexp.MustCompile(`(?i)((?:US[ \t]?\$|USD|\$)[ \t]?\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|(?:US[ \t]?\$|USD|\$)[ \t]?\d+(?:[.,]\d{1,2})?|\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?[ \t]*(?:D[OÓ]LARES|USD)|\d+(?:[.,]\d{1,2})?[ \t]*(?:D[OÓ]LARES|USD))`)
	l.Nombre = regexp.MustCompile(`(?:(?i:\b(?:SE[NÑ]ORA?|DON|DO[NÑ]A|COMPARECIENTES?|NOMBRES?(?:[ \t]+Y[ \t]+APELLIDOS)?|APELLIDOS[ \t]+Y[ \t]+NOMBRES|COMPRADORA?|VENDEDORA?|DONANTE|DONATARIO|DONATARIA|OTORGANTE|PROPIETARIO|PROPIETARIA)\b)|\bSRA?\.)[ \t]*:?[ \t]*(` + nameToken + `(?:` + nameSpacing + nameToken + `){1,5})`)
	l.Marca = regexp.MustCompile(`(?i)\b(TOYOTA|CHEVROLET|HYUNDAI|KIA|NISSAN|MAZDA|FORD|RENAULT|SUZUKI|VOLKSWAGEN|HONDA|MITSUBISHI|GREAT[ \t]+WALL|CHERY|JAC|BMW|MERCEDES[ \t-]+BENZ|AUDI|PEUGEOT|FIAT|JEEP|DODGE|SUBARU|VOLVO|ISUZU|HINO|DFSK|BYD|GEELY|JETOUR|CHANGAN|SKODA|CITRO[EË]N|LAND[ \t]+ROVER|PORSCHE|DAEWOO|MG|SSANGYONG|DONGFENG|FOTON|JMC|SHINERAY|YAMAHA|BAJAJ)\b`)
	l.Modelo = regexp.MustCompile(`(?i:\bMODELO)[ \t]*:?[ \t]*([A-Z0-9][A-Z0-9\-]*(?:[ \t]+[A-Z][A-Z0-9\-]*){0,2})`)
	l.Anio = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	l.VIN = regexp.MustCompile(`\b([A-HJ-NPR-Z0-9]{17})\b`)
	l.CodigoMotor = regexp.MustCompile(`\b([A-Z0-9][A-Z0-9\-]{4,19})\b`)
	l.EntidadSufijo = regexp.MustCompile(`(` + entityToken + `(?:[ \t]+` + entityToken + `){0,6})[ \t]*,?[ \t]+(S\.A\.S\.?|S\.[ \t]?A\.?|C[IÍ]A\.?[ \t]*LTDA\.?|C\.[ \t]*LTDA\.?|CIA[ \t]+LTDA)`)
	l.EntidadPrefijo = regexp.MustCompile(`(?i:\b(FIDEICOMISO|CONSORCIO|FUNDACI[OÓ]N|CORPORACI[OÓ]N|COOPERATIVA))(?:[ \t]+(?i:MERCANTIL|DENOMINAD[OA]|DE[ \t]+AHORRO[ \t]+Y[ \t]+CR[EÉ]DITO))*[ \t]+"?(` + entityToken + `(?:[ \t]+` + entityToken + `){0,5})`)
	l.Provincia = regexp.MustCompile(`(?i)\bPROVINCIA[ \t]+(?:DEL?[ \t]+)?(AZUAY|BOL[IÍ]VAR|CA[NÑ]AR|CARCHI|CHIMBORAZO|COTOPAXI|EL[ \t]+ORO|ESMERALDAS|GAL[AÁ]PAGOS|GUAYAS|IMBABURA|LOJA|LOS[ \t]+R[IÍ]OS|MANAB[IÍ]|MORONA[ \t]+SANTIAGO|NAPO|ORELLANA|PASTAZA|PICHINCHA|SANTA[ \t]+ELENA|SANTO[ \t]+DOMINGO(?:[ \t]+DE[ \t]+LOS[ \t]+TS[AÁ]CHILAS)?|SUCUMB[IÍ]OS|TUNGURAHUA|ZAMORA[ \t]+CHINCHIPE)`)
	l.Canton = regexp.MustCompile(`(?i:\bCANT[OÓ]N)[ \t]+(?i:DE[ \t]+)?(` + nameToken + `(?:` + nameSpacing + nameToken + `){0,2})`)
	l.Notaria = regexp.MustCompile(`(?i)\bNOTAR[IÍ]A[ \t]+(?:` + numberLabel + `[ \t]*)?(\d{1,3}|(?:` + ordinal + `)(?:[ \t]+(?:` + ordinal + `))?)`)
	l.Escritura = regexp.MustCompile(`(?i)\bESCRITURA(?:[ \t]+P[UÚ]BLICA)?[ \t]*` + numberLabel + `[ \t]*:?[ \t]*(\d[\dA-Z\-]{3,24})`)
	l.Repertorio = regexp.MustCompile(`(?i)\bREPERTORIO[ \t]*` + numberLabel + `[ \t]*:?[ \t]*(\d[\d.\-]{0,15})`)
	l.Folio = regexp.MustCompile(`(?i)\b(?:FOLIOS?|FOJAS?)[ \t]*` + numberLabel + `[ \t]*:?[ \t]*(\d{1,6})\b`)
	l.Articulo29 = regexp.MustCompile(`(?i)\b(ART(?:[IÍ]CULO|\.)?[ \t]*(?:N[°ºO]\.?[ \t]*)?29)\b`)
	l.FormaPago = regexp.MustCompile(`(?i)\bFORMA[ \t]+DE[ \t]+PAGO[ \t]*:?[ \t]*([^\n.;]{3,80})`)
	l.Direccion = regexp.MustCompile(`(?i)\b(?:DOMICILIAD[OA]S?[ \t]+EN|DIRECCI[OÓ]N(?:[ \t]+DOMICILIARIA)?|DOMICILIO)[ \t]*:?[ \t]*([^\n;,]{5,120})`)
	l.Nacionalidad = regexp.MustCompile(`(?i)\b(ECUATORIAN[OA]S?|COLOMBIAN[OA]S?|VENEZOLAN[OA]S?|PERUAN[OA]S?|CUBAN[OA]S?|ESPA[NÑ]OL(?:A|ES|AS)?|ESTADOUNIDENSES?|ARGENTIN[OA]S?|CHILEN[OA]S?|MEXICAN[OA]S?|ITALIAN[OA]S?|ALEM[AÁ]N(?:A|ES|AS)?|FRANC[EÉ]S(?:A|ES|AS)?)\b`)
	l.Declarante = regexp.MustCompile(`(?:(?i:\b(?:DECLARANTES?|COMPARECE(?:N)?|COMPARECIENTES?)\b)[ \t]*:?[ \t]*(?i:(?:EL|LA|LOS)[ \t]+)?(?i:(?:SE[NÑ]OR(?:A|ES|AS)?|SRA?\.?)[ \t]+)?)(` + nameToken + `(?:` + nameSpacing + nameToken + `){1,5})`)
	l.Objeto = regexp.MustCompile(`(?i)\b(?:OBJETO|PROP[OÓ]SITO|FINALIDAD|A[ \t]+FIN[ \t]+DE|CON[ \t]+EL[ \t]+FIN[ \t]+DE)[ \t]*:?[ \t]*([^\n.]{10,200})`)

	l.CedulaKeywords = NewKeywords("cedula", "CEDULA", "CEDULA DE CIUDADANIA", "CEDULA DE IDENTIDAD", "C.I.", "CI", "IDENTIFICACION", "DOCUMENTO DE IDENTIDAD")
	l.RUCKeywords = NewKeywords("ruc", "RUC", "R.U.C.", "REGISTRO UNICO DE CONTRIBUYENTES")
	l.RoleKeywords = []*Keywords{
		NewKeywords(RoleComprador, "COMPRADOR", "COMPRADORA", "COMPRADORES", "ADQUIRENTE", "ADQUIRIENTE", "COMPRA"),
		NewKeywords(RoleVendedor, "VENDEDOR", "VENDEDORA", "VENDEDORES", "ENAJENANTE", "TRANSFERENTE", "VENDE", "PROPIETARIO ANTERIOR"),
		NewKeywords(RoleDonante, "DONANTE", "DONANTES"),
		NewKeywords(RoleDonatario, "DONATARIO", "DONATARIA", "DONATARIOS"),
		NewKeywords(RoleOtorgante, "OTORGANTE", "OTORGANTES", "MANDANTE", "PODERDANTE"),
		NewKeywords(RoleDeclarante, "DECLARANTE", "DECLARANTES", "COMPARECIENTE"),
		NewKeywords(RoleSocio, "SOCIO", "SOCIA", "ACCIONISTA", "CONSTITUYENTE"),
		NewKeywords(RoleFiduciario, "FIDEICOMITENTE", "CONSTITUYENTE DEL FIDEICOMISO", "BENEFICIARIO"),
	}
	l.MotorKeywords = NewKeywords("motor", "MOTOR", "NUMERO DE MOTOR", "No. MOTOR", "MOTOR NO")
	l.ChasisKeywords = NewKeywords("chasis", "CHASIS", "CHASSIS", "VIN", "SERIE", "NUMERO DE CHASIS")
	l.PlacaKeywords = NewKeywords("placa", "PLACA", "PLACAS", "MATRICULA")
	l.AnioKeywords = NewKeywords("anio", "AÑO", "ANO", "AÑO MODELO", "AÑO DE FABRICACION", "MODELO")
	l.PrecioKeywords = NewKeywords("precio", "PRECIO", "VALOR", "COSTO", "MONTO", "PRECIO DE VENTA", "VALOR DE VENTA")
	l.ValorOperacionKeywords = NewKeywords("valor_operacion", "VALOR DE LA OPERACION", "VALOR DE OPERACION", "PRECIO", "PRECIO DE VENTA", "VALOR DEL CONTRATO")
	l.CuantiaKeywords = NewKeywords("cuantia", "CUANTIA", "LA CUANTIA", "CUANTIA DEL ACTO")
	l.TransferKeywords = NewKeywords("transferencia", "TRANSFERENCIA", "TRASPASO", "FECHA DE VENTA", "FECHA DE TRANSFERENCIA", "FECHA DE COMPRA", "FECHA")
	l.ColorKeywords = NewKeywords("color", "COLOR", "COLOR PRIMARIO")
	l.Colores = NewKeywords("color", "BLANCO", "NEGRO", "GRIS", "PLATEADO", "PLATA", "ROJO", "AZUL", "VERDE", "AMARILLO", "CAFE", "BEIGE", "DORADO", "VINO", "NARANJA", "MORADO", "CELESTE", "PLOMO", "TOMATE")
	l.Combustibles = NewKeywords("combustible", "GASOLINA", "DIESEL", "ELECTRICO", "HIBRIDO", "GLP", "GAS")
	l.Transmisiones = NewKeywords("transmision", "MANUAL", "AUTOMATICA", "AUTOMATICO", "MECANICA", "MECANICO", "CVT", "SECUENCIAL")
	l.PagoKeywords = NewKeywords("forma_pago", "CONTADO", "AL CONTADO", "CREDITO", "CHEQUE", "TRANSFERENCIA BANCARIA", "EFECTIVO", "FINANCIAMIENTO", "FINANCIADO", "DEPOSITO")
	l.DomainKeywords = NewKeywords("dominio", "PLACA", "MARCA", "MODELO", "MOTOR", "CHASIS", "AÑO", "COLOR", "COMPRADOR", "VENDEDOR", "CEDULA", "PRECIO", "VEHICULO", "MATRICULA", "PROPIETARIO", "CILINDRAJE", "COMBUSTIBLE", "CLASE", "SERVICIO", "TRANSFERENCIA")

	return l
}

var (
	defaultOnce    sync.Once
	defaultLibrary *Library
)

// Default returns a shared library built from DefaultConfig.
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLibrary = New(DefaultConfig())
	})
	return defaultLibrary
}

// Config returns a copy of the library's scoring configuration.
func (l *Library) Config() Config {
	return l.cfg
}

// Window is the configured context window in characters.
func (l *Library) Window() int {
	return l.cfg.ContextWindow
}
