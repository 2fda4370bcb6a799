package metobs

// Catalog XML documents. Only the elements the harvester reads are mapped.

type versionDoc struct {
	Resources []resource `xml:"resource"`
}

type resource struct {
	Key   string `xml:"key"`
	Title string `xml:"title"`
}

type parameterDoc struct {
	Stations []stationEntry `xml:"station"`
}

type stationEntry struct {
	Key  string `xml:"key"`
	Name string `xml:"name"`
}

type stationDoc struct {
	Periods []periodEntry `xml:"period"`
}

type periodEntry struct {
	Key string `xml:"key"`
}
