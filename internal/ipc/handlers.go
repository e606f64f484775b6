package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/hlog"

	"github.com/llehouerou/wavepost/internal/analyzer"
	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/errmsg"
	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/playback"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// WaveformBinsHeader carries the number of values in each waveform array.
const WaveformBinsHeader = "X-Waveform-Bins"

// Status is the transport part of PlayingData.
type Status struct {
	Playing      bool     `json:"playing"`
	PositionSecs float64  `json:"position_secs"`
	DurationSecs *float64 `json:"duration_secs,omitempty"`
}

// PlayingData is the body of GET /ipc/playing-data.
type PlayingData struct {
	Title    string        `json:"title,omitempty"`
	Artist   string        `json:"artist,omitempty"`
	Album    string        `json:"album,omitempty"`
	Location string        `json:"location,omitempty"`
	Index    int           `json:"index"`
	Status   Status        `json:"status"`
	State    string        `json:"state"`
	Volume   float64       `json:"volume"`
	Mode     playlist.Mode `json:"mode"`
}

// NewPlayingData shapes a snapshot for the UI.
func NewPlayingData(snap *playback.Snapshot) PlayingData {
	d := PlayingData{
		Index: snap.Index,
		Status: Status{
			Playing:      snap.Playing(),
			PositionSecs: snap.Position.Seconds(),
		},
		State:  snap.State.String(),
		Volume: snap.Volume,
		Mode:   snap.Mode,
	}
	if snap.Track != nil {
		d.Title = snap.Metadata.Title
		d.Artist = snap.Metadata.Artist
		d.Album = snap.Metadata.Album
		d.Location = snap.Track.Location
	}
	if snap.HasDuration {
		secs := snap.Duration.Seconds()
		d.Status.DurationSecs = &secs
	}
	return d
}

// EncodeWaveform writes the spectrum followed by the amplitude as
// little-endian float32 values.
func EncodeWaveform(f analyzer.Frame) []byte {
	var buf bytes.Buffer
	buf.Grow(2 * analyzer.Bins * 4)
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, f.Spectrum)
	_ = binary.Write(&buf, binary.LittleEndian, f.Amplitude)
	return buf.Bytes()
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, errors.Wrap(err, "read command"))
		return
	}
	cmd, err := message.ParseCommand(body)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg(errmsg.Format(errmsg.OpCommandParse, err))
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.bus.Publish(cmd)
	writeJSON(w, r, http.StatusAccepted, map[string]string{"kind": message.KindOf(cmd)})
}

func (s *Server) handlePlayingData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, NewPlayingData(s.player.Snapshot()))
}

func (s *Server) handleWaveformData(w http.ResponseWriter, _ *http.Request) {
	data := EncodeWaveform(s.player.Waveform())
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(WaveformBinsHeader, strconv.Itoa(analyzer.Bins))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleEvents streams notifications as server-sent events. Waveform frames
// are included only with ?waveform=1.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	log := hlog.FromRequest(r)

	mask := bus.Notifications
	if r.URL.Query().Get("waveform") == "1" {
		mask |= bus.Frequent
	}
	h, sub := s.bus.Subscribe(bus.WithChannels(mask))
	defer s.bus.Unsubscribe(h)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, ": subscribed\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Debug().Err(err).Msg("events stream cannot flush")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done:
			return
		case ev := <-sub.C:
			n, ok := ev.(message.Notification)
			if !ok {
				continue
			}
			if err := writeEvent(w, n); err != nil {
				log.Debug().Err(err).Msg("events stream closed")
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, n message.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(message.NameOf(n))
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	_, err = w.Write(buf.Bytes())
	return err
}

// writeJSON encodes v before writing the status. Encoding failures are
// logged and answered with 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}
