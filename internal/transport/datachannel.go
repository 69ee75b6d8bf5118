package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Speshl/gorrc_remote/internal/models"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

const OfferPath = "/offer"

// DataChannel sends commands over a WebRTC data channel negotiated with the vehicle's /offer endpoint.
type DataChannel struct {
	offerURL  string
	sessionId uuid.UUID
	timeout   time.Duration
	client    *http.Client

	lock    sync.Mutex
	peer    *webrtc.PeerConnection
	channel *webrtc.DataChannel
}

func NewDataChannel(server string, sessionId uuid.UUID, timeout time.Duration) *DataChannel {
	baseURL := server
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &DataChannel{
		offerURL:  strings.TrimSuffix(baseURL, "/") + OfferPath,
		sessionId: sessionId,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}
}

func (d *DataChannel) Connect(ctx context.Context) error {
	peer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("error creating peer connection - %w", err)
	}

	channel, err := d.negotiate(ctx, peer)
	if err != nil {
		peer.Close()
		return err
	}

	d.lock.Lock()
	oldPeer := d.peer
	d.peer = peer
	d.channel = channel
	d.lock.Unlock()

	if oldPeer != nil {
		oldPeer.Close()
	}
	return nil
}

func (d *DataChannel) negotiate(ctx context.Context, peer *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	channel, err := peer.CreateDataChannel(models.CommandChannelLabel, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating data channel - %w", err)
	}

	opened := make(chan struct{})
	channel.OnOpen(func() {
		log.Printf("data channel open: %s", channel.Label())
		close(opened)
	})
	peer.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("connection state has changed: %s", state.String())
		if state == webrtc.ICEConnectionStateFailed || state == webrtc.ICEConnectionStateClosed {
			d.drop(peer)
		}
	})

	offer, err := peer.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating offer - %w", err)
	}

	// non-trickle, the answer is a single http exchange
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	err = peer.SetLocalDescription(offer)
	if err != nil {
		return nil, fmt.Errorf("error setting local description - %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	answer, err := d.exchange(ctx, models.Offer{
		Offer:     *peer.LocalDescription(),
		SessionId: d.sessionId,
	})
	if err != nil {
		return nil, err
	}

	err = peer.SetRemoteDescription(*answer.Answer)
	if err != nil {
		return nil, fmt.Errorf("error setting remote description - %w", err)
	}

	select {
	case <-opened:
		return channel, nil
	case <-time.After(d.timeout):
		return nil, fmt.Errorf("data channel did not open within %s", d.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *DataChannel) exchange(ctx context.Context, offer models.Offer) (models.Answer, error) {
	answer := models.Answer{}

	encodedOffer, err := models.Encode(offer)
	if err != nil {
		return answer, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.offerURL, bytes.NewBufferString(encodedOffer))
	if err != nil {
		return answer, fmt.Errorf("error building offer request - %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return answer, fmt.Errorf("error sending offer - %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return answer, fmt.Errorf("error reading answer - %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return answer, fmt.Errorf("offer rejected: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	err = models.Decode(string(body), &answer)
	if err != nil {
		return answer, err
	}
	if answer.Answer == nil {
		return answer, fmt.Errorf("answer missing session description")
	}
	return answer, nil
}

func (d *DataChannel) Connected() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.channel != nil && d.channel.ReadyState() == webrtc.DataChannelStateOpen
}

func (d *DataChannel) Send(ctx context.Context, cmd string) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.channel == nil || d.channel.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrUnavailable
	}
	err := d.channel.SendText(cmd + LineTerminator)
	if err != nil {
		return sendFailure(err)
	}
	return nil
}

func (d *DataChannel) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.channel = nil
	if d.peer == nil {
		return nil
	}
	err := d.peer.Close()
	d.peer = nil
	return err
}

func (d *DataChannel) drop(peer *webrtc.PeerConnection) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.peer == peer {
		d.channel = nil
	}
}
