package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/speters/nextiond/nextion"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var cfgFile = flag.String("f", "", "read configuration from TOML `file`")
var tableFile = flag.String("w", "", "widget table `file` (.toml or .yaml), merged over the built-in table")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var connTo = flag.String("c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for direct serial connection ")
var baud = flag.Int("b", 0, "serial baud rate (default 9600)")
var timeout = flag.Duration("t", 0, "reply timeout, 0 waits forever")
var events = flag.Bool("e", false, "read and dispatch touch events (needs -t)")
var getAttr = flag.String("get", "", "print attribute `name.key` and exit")
var setAttr = flag.String("set", "", "assign `name.key=value` and exit")
var verbose = flag.Bool("v", false, "verbose logging")

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

type server struct {
	panel      *nextion.Panel
	components map[string]*nextion.Component
}

type attrValue struct {
	Component string      `json:"component"`
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
}

func (s *server) lookup(w http.ResponseWriter, name string) (*nextion.Component, bool) {
	c, ok := s.components[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(fmt.Sprintf("No such component %v", name)))
	}
	return c, ok
}

func httpStatus(err error) int {
	switch nextion.KindOf(err) {
	case nextion.KindValidation, nextion.KindEncoding:
		if errors.Is(err, nextion.ErrUnknownAttribute) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case nextion.KindTimeout:
		return http.StatusGatewayTimeout
	case nextion.KindSemantic, nextion.KindFraming, nextion.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(httpStatus(err))
	w.Write([]byte(err.Error()))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	e.Encode(v)
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: buildVersion, BuildDate: buildDate})
}

func (s *server) getWidgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.panel.Widgets)
}

func (s *server) getComponents(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
		Page uint8  `json:"page"`
		ID   uint8  `json:"id"`
	}
	list := []entry{}
	for _, c := range s.components {
		list = append(list, entry{c.Name(), c.Kind(), c.PageID(), c.ComponentID()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	writeJSON(w, list)
}

func (s *server) getAttribute(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	c, ok := s.lookup(w, params["name"])
	if !ok {
		return
	}
	v, err := c.Get(params["key"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, attrValue{c.Name(), params["key"], v})
}

func (s *server) setAttribute(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	c, ok := s.lookup(w, params["name"])
	if !ok {
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	var val interface{}
	if err := decoder.Decode(&val); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	if err := c.Set(params["key"], val); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "OK")
}

func (s *server) addData(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, mux.Vars(r)["name"])
	if !ok {
		return
	}
	var req struct {
		Channel uint8 `json:"channel"`
		Value   uint8 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	if err := c.AddData(req.Channel, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "OK")
}

func (s *server) clearChannel(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	c, ok := s.lookup(w, params["name"])
	if !ok {
		return
	}
	ch, err := strconv.ParseUint(params["channel"], 10, 8)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	if err := c.ClearChannel(uint8(ch)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "OK")
}

func newRouter(s *server) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/version", versionInfo).Methods("GET")
	router.HandleFunc("/widgets", s.getWidgets).Methods("GET")
	router.HandleFunc("/components", s.getComponents).Methods("GET")
	router.HandleFunc("/component/{name}/add", s.addData).Methods("POST")
	router.HandleFunc("/component/{name}/cle/{channel:[0-9]+}", s.clearChannel).Methods("POST")
	router.HandleFunc("/component/{name}/{key}", s.getAttribute).Methods("GET")
	router.HandleFunc("/component/{name}/{key}", s.setAttribute).Methods("POST")
	return router
}

// bind creates the configured components on p
func bind(p *nextion.Panel, widgets []ComponentConfig) (map[string]*nextion.Component, error) {
	components := make(map[string]*nextion.Component, len(widgets))
	for _, wc := range widgets {
		c, err := p.BindKind(wc.Kind, wc.Page, wc.ID, wc.Name)
		if err != nil {
			return nil, err
		}
		if w := p.Widgets[wc.Kind]; w.Touch {
			c.SetOnClick(func() { log.Infof("%v pressed", c) })
			c.SetOnRelease(func() { log.Infof("%v released", c) })
		}
		components[wc.Name] = c
	}
	return components, nil
}

// splitAttr splits "name.key" at the last dot, names may contain dots themselves
func splitAttr(s string) (string, string, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("expected name.key, got %q", s)
	}
	return s[:i], s[i+1:], nil
}

func cliget(components map[string]*nextion.Component, attr string) (string, error) {
	name, key, err := splitAttr(attr)
	if err != nil {
		return "", err
	}
	c, ok := components[name]
	if !ok {
		return "", fmt.Errorf("No such component %v", name)
	}
	v, err := c.Get(key)
	if err != nil {
		return "", err
	}
	bs, err := json.MarshalIndent(attrValue{name, key, v}, "", "    ")
	return string(bs), err
}

func cliset(components map[string]*nextion.Component, assignment string) error {
	attr, val, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("expected name.key=value, got %q", assignment)
	}
	name, key, err := splitAttr(attr)
	if err != nil {
		return err
	}
	c, ok := components[name]
	if !ok {
		return fmt.Errorf("No such component %v", name)
	}
	spec, err := c.Spec(key)
	if err != nil {
		return err
	}
	var v interface{} = val
	if spec.Kind == nextion.Integer || spec.Kind == nextion.Bool {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", name, key, err)
		}
		v = n
	}
	return c.Set(key, v)
}

// eventLoop reads frames while no query is running and dispatches touch events
func eventLoop(p *nextion.Panel, d *nextion.Device) {
	for {
		select {
		case <-d.Done:
			return
		default:
		}
		f, err := p.ReadFrame()
		if err != nil {
			if nextion.KindOf(err) == nextion.KindTimeout {
				if len(f.Payload) > 0 {
					log.Warnf("Torn frame %v, draining", f)
					d.Drain()
				}
				continue
			}
			log.Errorf("Reading events: %v", err)
			d.Drain()
			continue
		}
		switch f.Tag {
		case nextion.TagTouch:
			ev, err := nextion.ParseTouch(f)
			if err != nil {
				log.Warn(err.Error())
				break
			}
			p.Dispatch(ev)
		case nextion.TagLaunched, nextion.TagUpgraded, nextion.TagCurrentPage:
			log.Infof("Display reports %v", f)
		default:
			if err := f.Status(); err != nil {
				log.Warnf("Unsolicited frame %v", f)
			}
		}
	}
}

func main() {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	var cfg Config
	if *cfgFile != "" {
		var err error
		cfg, err = loadConfig(*cfgFile)
		if err != nil {
			log.Fatal(err)
		}
	}
	// flags override the configuration file
	if *connTo != "" {
		cfg.Link = *connTo
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *httpServe != "" {
		cfg.Listen = *httpServe
	}
	if *tableFile != "" {
		cfg.Table = *tableFile
	}
	if *events {
		cfg.Events = true
	}
	replyTimeout, _ := cfg.timeout()
	if *timeout != 0 {
		replyTimeout = *timeout
	}

	if cfg.Link == "" {
		log.Fatal("Need connection string in -c option or link in the configuration file")
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	dev := nextion.NewDevice()
	dev.Timeout = replyTimeout
	if cfg.Baud != 0 {
		dev.Baud = cfg.Baud
	}
	if err := dev.Connect(cfg.Link); err != nil {
		log.Fatal(err)
	}

	go func() {
		<-done
		dev.Close()
		os.Exit(0)
	}()

	panel := nextion.NewPanel(dev)
	if cfg.Table != "" {
		f, err := os.Open(cfg.Table)
		if err != nil {
			log.Fatalf("Error opening file: %s", err)
		}
		t, err := nextion.ParseTable(f, nextion.FormatOf(cfg.Table))
		f.Close()
		if err != nil {
			log.Fatal(err)
		}
		panel.Widgets = panel.Widgets.Merge(t)
	}

	components, err := bind(panel, cfg.Widgets)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Bound %v components on %v", len(components), cfg.Link)

	if *getAttr != "" {
		out, err := cliget(components, *getAttr)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(out)
		return
	}
	if *setAttr != "" {
		if err := cliset(components, *setAttr); err != nil {
			log.Fatal(err)
		}
		return
	}

	if cfg.Events {
		if replyTimeout == 0 {
			log.Warn("Event dispatch needs a reply timeout, not reading events")
		} else {
			go eventLoop(panel, dev)
		}
	}

	if cfg.Listen == "" {
		<-dev.Done
		return
	}

	// accept :[portnum] as well as [portnum]
	listen := cfg.Listen
	if i, err := strconv.Atoi(listen); err == nil {
		listen = fmt.Sprintf(":%d", i)
	}
	h := &http.Server{Addr: listen, Handler: newRouter(&server{panel: panel, components: components})}
	go func() { log.Error(h.ListenAndServe()) }()

	for {
		<-dev.Done
		<-time.After(12 * time.Second)
		err := dev.Reconnect()
		if err != nil {
			log.Error(err)
		} else {
			log.Infof("Reconnected")
			if cfg.Events && replyTimeout > 0 {
				go eventLoop(panel, dev)
			}
		}
	}
}
