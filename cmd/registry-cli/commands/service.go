package commands

import (
	"os"
	"registry-backend/lib/configutil"
	"registry-backend/lib/registry"
	"registry-backend/lib/restyutil"
	"registry-backend/lib/scrapers/bir"
	"registry-backend/lib/scrapers/egrul"
	"registry-backend/lib/serviceutil"
	"registry-backend/services/extregistry"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Config struct {
	BirUrl   string `json:"birUrl"`
	EgrulUrl string `json:"egrulUrl"`
	NotesDir string `json:"notesDir"`
}

func createService() *extregistry.Service {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.BirUrl == "" {
		cfg.BirUrl = "https://site.birweb.1prime.ru"
	}
	if cfg.EgrulUrl == "" {
		cfg.EgrulUrl = "https://egrul.nalog.ru"
	}
	if cfg.NotesDir == "" {
		cfg.NotesDir = "."
	}

	commercial, err := bir.NewClient(bir.ClientOptions{SiteURL: cfg.BirUrl})
	if err != nil {
		serviceutil.Fatal("failed to initialize commercial registry client", err)
	}
	government, err := egrul.NewClient(egrul.ClientOptions{PortalURL: cfg.EgrulUrl})
	if err != nil {
		serviceutil.Fatal("failed to initialize government registry client", err)
	}
	if *dumpHttp {
		output := restyutil.NewFilesystemOutput(".dev/resty/registry")
		commercial.SetInstrumentOutput(output)
		government.SetInstrumentOutput(output)
	}

	return extregistry.New(extregistry.Options{
		Commercial: commercial,
		Government: government,
		Notes:      extregistry.NewFilesystemNotes(cfg.NotesDir),
	})
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func printRecord(record *registry.Record) {
	if record == nil {
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Поле", "Значение"})
	for _, key := range record.Keys() {
		v, _ := record.Get(key)
		switch v.Kind {
		case registry.KindText:
			t.AppendRow(table.Row{key, v.Text})
		case registry.KindBool:
			t.AppendRow(table.Row{key, v.Bool})
		case registry.KindPairs:
			for _, pair := range v.Pairs {
				t.AppendRow(table.Row{key, pair.Code + " — " + pair.Description})
			}
		case registry.KindNested:
			for _, sub := range v.Nested.Keys() {
				subValue, _ := v.Nested.Get(sub)
				switch subValue.Kind {
				case registry.KindText:
					t.AppendRow(table.Row{key + " / " + sub, subValue.Text})
				case registry.KindPairs:
					for _, pair := range subValue.Pairs {
						t.AppendRow(table.Row{key + " / " + sub, pair.Code + " " + pair.Description})
					}
				}
			}
		}
	}
	t.Render()
}

func printPersons(persons []registry.Person) {
	t := newTable()
	t.AppendHeader(table.Row{"ФИО", "ИНН", "Должности"})
	for _, p := range persons {
		t.AppendRow(table.Row{p.FullName, p.TaxID, strings.Join(p.Positions, ", ")})
	}
	t.Render()
}

func printMatches(matches []registry.Match) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Наименование", "ИНН", "Статус"})
	for _, m := range matches {
		name := m.ShortName
		if name == "" {
			name = m.FullName
		}
		status := "действующая"
		if !m.Active {
			status = "прекращена " + m.SuspendDate
		}
		t.AppendRow(table.Row{m.ID, name, m.TaxID, status})
	}
	t.Render()
}
