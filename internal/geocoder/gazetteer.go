package geocoder

import "github.com/manuchak/detecta-core/internal/geo"

// Place is a gazetteer entry. Name is in normalized form.
type Place struct {
	Name  string    `json:"nombre"`
	State string    `json:"estado"`
	Point geo.Point `json:"coordenadas"`
}

// places covers the freight corridors where custody services operate.
// Aliases and state names point at the city they usually refer to.
var places = []Place{
	{"CIUDAD DE MEXICO", "CDMX", geo.Point{Lat: 19.4326, Lng: -99.1332}},
	{"CDMX", "CDMX", geo.Point{Lat: 19.4326, Lng: -99.1332}},
	{"AICM", "CDMX", geo.Point{Lat: 19.4361, Lng: -99.0719}},
	{"AIFA", "Estado de México", geo.Point{Lat: 19.7456, Lng: -99.0156}},
	{"TOLUCA", "Estado de México", geo.Point{Lat: 19.2826, Lng: -99.6557}},
	{"TLALNEPANTLA", "Estado de México", geo.Point{Lat: 19.5400, Lng: -99.1950}},
	{"ECATEPEC", "Estado de México", geo.Point{Lat: 19.6010, Lng: -99.0500}},
	{"CUAUTITLAN", "Estado de México", geo.Point{Lat: 19.6700, Lng: -99.1790}},
	{"GUADALAJARA", "Jalisco", geo.Point{Lat: 20.6597, Lng: -103.3496}},
	{"MONTERREY", "Nuevo León", geo.Point{Lat: 25.6866, Lng: -100.3161}},
	{"NUEVO LEON", "Nuevo León", geo.Point{Lat: 25.6866, Lng: -100.3161}},
	{"QUERETARO", "Querétaro", geo.Point{Lat: 20.5888, Lng: -100.3899}},
	{"SAN LUIS POTOSI", "San Luis Potosí", geo.Point{Lat: 22.1565, Lng: -100.9855}},
	{"AGUASCALIENTES", "Aguascalientes", geo.Point{Lat: 21.8853, Lng: -102.2916}},
	{"PUEBLA", "Puebla", geo.Point{Lat: 19.0414, Lng: -98.2063}},
	{"CELAYA", "Guanajuato", geo.Point{Lat: 20.5235, Lng: -100.8157}},
	{"LEON", "Guanajuato", geo.Point{Lat: 21.1250, Lng: -101.6860}},
	{"IRAPUATO", "Guanajuato", geo.Point{Lat: 20.6767, Lng: -101.3563}},
	{"SALAMANCA", "Guanajuato", geo.Point{Lat: 20.5739, Lng: -101.1957}},
	{"NUEVO LAREDO", "Tamaulipas", geo.Point{Lat: 27.4779, Lng: -99.5496}},
	{"REYNOSA", "Tamaulipas", geo.Point{Lat: 26.0508, Lng: -98.2979}},
	{"MANZANILLO", "Colima", geo.Point{Lat: 19.1138, Lng: -104.3385}},
	{"LAZARO CARDENAS", "Michoacán", geo.Point{Lat: 17.9583, Lng: -102.2000}},
	{"MORELIA", "Michoacán", geo.Point{Lat: 19.7060, Lng: -101.1950}},
	{"VERACRUZ", "Veracruz", geo.Point{Lat: 19.1738, Lng: -96.1342}},
	{"SALTILLO", "Coahuila", geo.Point{Lat: 25.4383, Lng: -100.9737}},
	{"TORREON", "Coahuila", geo.Point{Lat: 25.5428, Lng: -103.4068}},
	{"ZACATECAS", "Zacatecas", geo.Point{Lat: 22.7709, Lng: -102.5833}},
	{"CHIHUAHUA", "Chihuahua", geo.Point{Lat: 28.6353, Lng: -106.0889}},
	{"CIUDAD JUAREZ", "Chihuahua", geo.Point{Lat: 31.6904, Lng: -106.4245}},
	{"HERMOSILLO", "Sonora", geo.Point{Lat: 29.0729, Lng: -110.9559}},
	{"CULIACAN", "Sinaloa", geo.Point{Lat: 24.8091, Lng: -107.3940}},
	{"TIJUANA", "Baja California", geo.Point{Lat: 32.5149, Lng: -117.0382}},
	{"MERIDA", "Yucatán", geo.Point{Lat: 20.9674, Lng: -89.5926}},
	{"CUERNAVACA", "Morelos", geo.Point{Lat: 18.9242, Lng: -99.2216}},
	{"PACHUCA", "Hidalgo", geo.Point{Lat: 20.1011, Lng: -98.7591}},
}

// Places returns a copy of the gazetteer
func Places() []Place {
	return append([]Place(nil), places...)
}
