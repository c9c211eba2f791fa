package models

// StructuredData is the typed projection of a field list.
// Every member is optional; nil or empty means nothing was found.
type StructuredData struct {
	Persons   []PersonData  `json:"persons,omitempty"`
	Vehicle   *VehicleData  `json:"vehicle,omitempty"`
	Notarial  *NotarialData `json:"notarial,omitempty"`
	Companies []CompanyData `json:"companies,omitempty"`
}

// PersonData describes a natural person named in a document.
type PersonData struct {
	Nombre       string `json:"nombre,omitempty"`
	Cedula       string `json:"cedula,omitempty"`
	Pasaporte    string `json:"pasaporte,omitempty"`
	Nacionalidad string `json:"nacionalidad,omitempty"`
	Telefono     string `json:"telefono,omitempty"`
	Email        string `json:"email,omitempty"`
	Direccion    string `json:"direccion,omitempty"`
	Rol          string `json:"rol,omitempty"`
}

// VehicleData describes the vehicle of a transfer.
type VehicleData struct {
	Marca         string      `json:"marca,omitempty"`
	Modelo        string      `json:"modelo,omitempty"`
	Anio          string      `json:"anio,omitempty"`
	Placa         string      `json:"placa,omitempty"`
	Motor         string      `json:"motor,omitempty"`
	Chasis        string      `json:"chasis,omitempty"`
	Color         string      `json:"color,omitempty"`
	Combustible   string      `json:"combustible,omitempty"`
	Transmision   string      `json:"transmision,omitempty"`
	Precio        string      `json:"precio,omitempty"`
	FormaPago     string      `json:"formaPago,omitempty"`
	FechaTransfer string      `json:"fechaTransferencia,omitempty"`
	Comprador     *PersonData `json:"comprador,omitempty"`
	Vendedor      *PersonData `json:"vendedor,omitempty"`
}

// NotarialData holds the notarial artifacts of a deed.
type NotarialData struct {
	NumeroEscritura string `json:"numeroEscritura,omitempty"`
	Repertorio      string `json:"repertorio,omitempty"`
	Folio           string `json:"folio,omitempty"`
	Notaria         string `json:"notaria,omitempty"`
	Fecha           string `json:"fecha,omitempty"`
	Cuantia         string `json:"cuantia,omitempty"`
	ValorOperacion  string `json:"valorOperacion,omitempty"`
	FormaPago       string `json:"formaPago,omitempty"`
	Articulo29      bool   `json:"articulo29,omitempty"`
	Objeto          string `json:"objeto,omitempty"`
	Provincia       string `json:"provincia,omitempty"`
	Canton          string `json:"canton,omitempty"`
}

// CompanyData describes a legal entity named in a document.
type CompanyData struct {
	RazonSocial string `json:"razonSocial,omitempty"`
	RUC         string `json:"ruc,omitempty"`
	Tipo        string `json:"tipo,omitempty"`
}

// IsEmpty reports whether no projection was populated.
func (s StructuredData) IsEmpty() bool {
	return len(s.Persons) == 0 && s.Vehicle == nil && s.Notarial == nil && len(s.Companies) == 0
}
