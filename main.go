package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"gtncr/internal/auth"
	"gtncr/internal/config"
	"gtncr/internal/handlers/admin"
	"gtncr/internal/handlers/forms"
	"gtncr/internal/handlers/registry"
	"gtncr/internal/websocket"
)

const appVersion = "1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Config load failed: ", err)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	if err := initDB(cfg.Database.Path); err != nil {
		log.Fatal("DB init failed: ", err)
	}
	seedDB(cfg)

	hub := websocket.NewHub()
	mux := newRouter(cfg, hub)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	log.Printf("%s starting on http://localhost%s", cfg.App.Name, addr)
	log.Fatal(http.ListenAndServe(addr, requestID(logging(mux))))
}

func newRouter(cfg *config.Config, hub *websocket.Hub) *http.ServeMux {
	adminH := &admin.Handler{
		DB:                db,
		Hub:               hub,
		AppName:           cfg.App.Name,
		Version:           appVersion,
		SessionHours:      cfg.Auth.SessionHours,
		BootstrapUsername: cfg.Auth.Bootstrap.Username,
	}
	registryH := &registry.Handler{DB: db, Hub: hub}
	formsH := &forms.Handler{DB: db, Hub: hub}

	mux := http.NewServeMux()

	// Static files; / falls back to the login page.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.ServeFile(w, r, "static/login.html")
			return
		}
		http.ServeFile(w, r, "static/"+strings.TrimPrefix(r.URL.Path, "/"))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if auth.CurrentUser(db, r) == nil {
			w.WriteHeader(401)
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		websocket.Handle(hub, w, r)
	})

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Auth
		case path == "login" && r.Method == "POST":
			adminH.Login(w, r)
		case path == "logout" && r.Method == "POST":
			adminH.Logout(w, r)
		case path == "session" && r.Method == "GET":
			adminH.Session(w, r)

		// Users
		case path == "users" && r.Method == "GET":
			adminH.ListUsers(w, r)
		case path == "users" && r.Method == "POST":
			adminH.CreateUser(w, r)
		case parts[0] == "users" && len(parts) == 2 && r.Method == "PUT":
			adminH.UpdateUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 2 && r.Method == "DELETE":
			adminH.DeleteUser(w, r, parts[1])

		// PO registry
		case path == "pos" && r.Method == "GET":
			registryH.List(w, r)
		case path == "pos" && r.Method == "POST":
			registryH.Create(w, r)
		case parts[0] == "pos" && len(parts) == 2 && r.Method == "PUT":
			registryH.Update(w, r, parts[1])
		case parts[0] == "pos" && len(parts) == 2 && r.Method == "DELETE":
			registryH.Delete(w, r, parts[1])

		// Backup/restore
		case path == "backup" && r.Method == "GET":
			adminH.Backup(w, r)
		case path == "restore" && r.Method == "POST":
			adminH.Restore(w, r)

		// Audit trail
		case path == "audit" && r.Method == "GET":
			adminH.ListAudit(w, r)

		// Forms: /{kind}-form/save, /{kind}-form/load, /{kind}-export-excel
		case len(parts) == 2 && strings.HasSuffix(parts[0], "-form") && parts[1] == "save" && r.Method == "POST":
			formsH.Save(w, r, strings.TrimSuffix(parts[0], "-form"))
		case len(parts) == 2 && strings.HasSuffix(parts[0], "-form") && parts[1] == "load" && r.Method == "GET":
			formsH.Load(w, r, strings.TrimSuffix(parts[0], "-form"))
		case len(parts) == 1 && strings.HasSuffix(parts[0], "-export-excel") && r.Method == "GET":
			formsH.Export(w, r, strings.TrimSuffix(parts[0], "-export-excel"))

		default:
			w.WriteHeader(404)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	})

	return mux
}
