package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

// viewedWindow is how long a bucket keeps being rendered after its last view.
const viewedWindow = 5 * time.Second

type ImageContainer struct {
	name string
	data []byte
}

func (ic *ImageContainer) Name() string {
	return ic.name
}

func (ic *ImageContainer) Data() []byte {
	return ic.data
}

type Producer interface {
	Name() string
	GetImage() *ImageContainer
	AddPlotOption(opt PlotOptions)
}

// Server renders registered producers on demand and serves the resulting PNGs
// along with JSON snapshots and the metrics endpoint.
type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	port            int
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	enabled         bool
	lastViewed      map[string]time.Time
	metrics         http.Handler
	data            map[string]func() interface{}
}

func NewServer(port int, updateInterval time.Duration) *Server {
	return &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		port:            port,
		lastViewed:      make(map[string]time.Time),
		srv:             &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval:  updateInterval,
		enabled:         true,
		data:            make(map[string]func() interface{}),
	}
}

func (s *Server) Enable(enable bool) {
	s.mu.Lock()
	s.enabled = enable
	s.mu.Unlock()
}

func (s *Server) SetUpdateInterval(interval time.Duration) {
	s.mu.Lock()
	s.updateInterval = interval
	s.mu.Unlock()
}

// SetMetricsHandler mounts h on /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.mu.Lock()
	s.metrics = h
	s.mu.Unlock()
}

// HandleJSON serves the value returned by fn on /<name>, e.g. "series".
func (s *Server) HandleJSON(name string, fn func() interface{}) {
	s.mu.Lock()
	s.data[name] = fn
	s.mu.Unlock()
}

func (s *Server) Register(key string, p Producer) {
	s.mu.Lock()
	bucket, ok := s.producerBuckets[key]
	if !ok {
		bucket = make(map[string]Producer)
		s.producerBuckets[key] = bucket
	}
	bucket[p.Name()] = p
	s.mu.Unlock()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("viz server shutdown")
	}
}

func (s *Server) markViewed(bucket string) {
	s.mu.Lock()
	s.lastViewed[bucket] = time.Now()
	s.mu.Unlock()
}

// Refresh renders every producer of the recently viewed buckets.
func (s *Server) Refresh() {
	s.mu.RLock()
	if !s.enabled {
		s.mu.RUnlock()
		return
	}
	work := make(map[string][]Producer)
	for bucketName, bucket := range s.producerBuckets {
		if time.Since(s.lastViewed[bucketName]) >= viewedWindow {
			continue
		}
		for _, p := range bucket {
			work[bucketName] = append(work[bucketName], p)
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for bucketName, producers := range work {
		for _, producer := range producers {
			wg.Add(1)
			go func(bucket string, p Producer) {
				defer wg.Done()

				img := p.GetImage()
				if img == nil {
					return
				}

				s.mu.Lock()
				mb, ok := s.images[bucket]
				if !ok {
					mb = make(map[string]*ImageContainer)
					s.images[bucket] = mb
				}
				mb[img.name] = img
				s.mu.Unlock()
			}(bucketName, producer)
		}
	}
	wg.Wait()
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		for {
			s.mu.RLock()
			interval := s.updateInterval
			s.mu.RUnlock()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				s.Stop(shutdownCtx)
				cancel()
				return
			case <-time.After(interval):
				s.Refresh()
			}
		}
	}()

	s.srv.Handler = s.Handler()

	log.Info().Int("port", s.port).Msg("viz server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler returns the router serving every viz route.
func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		keys := s.bucketNames()
		s.mu.RUnlock()

		if len(keys) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Location", "/view/"+url.PathEscape(keys[0]))
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/view/:bucket", s.handleView)

	handler.GET("/img/:bucket/:img", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucketName := params.ByName("bucket")
		s.markViewed(bucketName)

		s.mu.RLock()
		img, ok := s.images[bucketName][params.ByName("img")]
		s.mu.RUnlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Add("Content-Type", "image/png")
		w.Write(img.data)
	})

	handler.GET("/metrics", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		h := s.metrics
		s.mu.RUnlock()
		if h == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.ServeHTTP(w, r)
	})

	handler.GET("/data/:name", s.handleJSON)
	handler.GET("/series", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.handleJSON(w, r, httprouter.Params{{Key: "name", Value: "series"}})
	})

	return handler
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.mu.RLock()
	fn, ok := s.data[params.ByName("name")]
	s.mu.RUnlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(fn()); err != nil {
		log.Warn().Err(err).Str("name", params.ByName("name")).Msg("failed to encode json")
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucket := params.ByName("bucket")

	s.mu.RLock()
	itemsForBucket, ok := s.producerBuckets[bucket]
	_, rendered := s.images[bucket]
	s.mu.RUnlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.markViewed(bucket)
	if !rendered {
		s.Refresh()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucketKeys := s.bucketNames()
	keys := make([]string, 0, len(itemsForBucket))
	for key := range itemsForBucket {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w.Header().Add("Content-Type", "text/html")
	w.Write([]byte(`<html><head><title>FluxVault Viz</title></head>`))

	w.Write([]byte(fmt.Sprintf(`
		<script type="text/javascript">
			var toggleRefresh = true;
			function toggleOn() {
				toggleRefresh = !toggleRefresh;
			}

			function changeBucket() {
				var val = document.getElementById('bucketSelector').value;
				window.location.href = '/view/' + val;
			}
			window.onload = function() {
				for (var i = 0; i < %d; i++) {
					var img = document.getElementById('graph-' + i);
					setInterval(function(image) {
						if (toggleRefresh) {
							image.src = image.src.split("?")[0] + "?" + new Date().getTime();
						}
					}, %d, img);
				}
			}
		</script>`, len(keys), s.updateInterval.Milliseconds())))
	w.Write([]byte(`<body style='background-color: black'>`))

	w.Write([]byte(`<select id="bucketSelector" onchange="changeBucket()">`))
	for _, bucketName := range bucketKeys {
		selected := ""
		if bucketName == bucket {
			selected = " selected"
		}
		name := html.EscapeString(bucketName)
		w.Write([]byte(fmt.Sprintf(`<option value="%s"%s>%s</option>`, name, selected, name)))
	}
	w.Write([]byte(`</select>`))
	w.Write([]byte(`<button onclick="toggleOn()">Refresh?</button>`))

	w.Write([]byte(`<div style="display: flex; flex-direction: row; flex-wrap: wrap">`))
	for idx, key := range keys {
		w.Write([]byte(fmt.Sprintf(`<div><img id="graph-%d" src="/img/%s/%s?%d" /></div>`,
			idx, url.PathEscape(bucket), url.PathEscape(key), time.Now().UnixMicro())))
	}
	w.Write([]byte(`</div>`))

	w.Write([]byte(`</body></html>`))
}

// bucketNames must be called with mu held.
func (s *Server) bucketNames() []string {
	keys := make([]string, 0, len(s.producerBuckets))
	for key := range s.producerBuckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
