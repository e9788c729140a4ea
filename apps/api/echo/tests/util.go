package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/selah/apps/api/echo"
	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/annotation"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/donation"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/group"
	"github.com/trezcool/selah/core/lesson"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/plan"
	"github.com/trezcool/selah/core/podcast"
	"github.com/trezcool/selah/core/prayer"
	"github.com/trezcool/selah/core/user"
	"github.com/trezcool/selah/services/email"
	"github.com/trezcool/selah/services/logger"
	"github.com/trezcool/selah/storage/database/inmem"
)

const (
	testVAPIDKey     = "BTestVapidPublicKey"
	validSignature   = "t=1,v1=valid"
	strongPassword   = "Sup3r$ecret!x"
	unknownUUID      = "00000000-0000-4000-8000-000000000000"
	passageVerseText = "In the beginning was the Word"
)

var (
	conf     *core.Config
	usrRepo  user.Repository
	gameSvc  gamification.Service
	payments *paymentMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

// setup wires a fresh in-memory app for each test.
func setup(t *testing.T) *Server {
	t.Helper()

	conf = core.NewTestConfig()
	conf.WebPush.VAPIDPublicKey = testVAPIDKey
	log := logsvc.NewTestLogger()

	translator, _ := ut.New(en.New()).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	bible.InitValidators(validate, translator)

	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, log)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)

	// set up services
	usrSvc := user.NewService(conf, usrRepo, mailSvc, log)
	bibleSvc := bible.NewService(conf, bibleProviderMock{})
	gameSvc = gamification.NewService(inmemdb.NewGamificationRepository(db), db, usrSvc, log)
	groupSvc := group.NewService(inmemdb.NewGroupRepository(db), db, nil /* assistant */, bibleSvc, gameSvc, mailSvc, log)
	payments = &paymentMock{}

	return NewServer(&Deps{
		Conf:       conf,
		Logger:     log,
		Validate:   validate,
		Translator: translator,

		UserSvc:         usrSvc,
		BibleSvc:        bibleSvc,
		AnnotationSvc:   annotation.NewService(inmemdb.NewAnnotationRepository(db)),
		PlanSvc:         plan.NewService(inmemdb.NewPlanRepository(db), gameSvc, log),
		PrayerSvc:       prayer.NewService(inmemdb.NewPrayerRepository(db), groupSvc, gameSvc, log),
		GroupSvc:        groupSvc,
		PodcastSvc:      podcast.NewService(inmemdb.NewPodcastRepository(db), gameSvc, log),
		LessonSvc:       lesson.NewService(inmemdb.NewLessonRepository(db), gameSvc, log),
		GamificationSvc: gameSvc,
		DonationSvc:     donation.NewService(conf, inmemdb.NewDonationRepository(db), db, payments, mailSvc, log),
		NotificationSvc: notification.NewService(conf, inmemdb.NewNotificationRepository(db)),
	})
}

// bibleProviderMock answers every passage with a single verse.
type bibleProviderMock struct{}

func (bibleProviderMock) Passage(ctx context.Context, translation string, ref bible.Reference) (bible.Passage, error) {
	verse := ref.VerseStart
	if verse == 0 {
		verse = 1
	}
	return bible.Passage{
		Verses: []bible.Verse{{Book: ref.Book, Chapter: ref.Chapter, Verse: verse, Text: passageVerseText}},
		Text:   passageVerseText,
	}, nil
}

// paymentMock hands out sequential intents and accepts webhooks signed with validSignature.
type paymentMock struct {
	mu      sync.Mutex
	intents int
}

type webhookPayload struct {
	Type     donation.EventType `json:"type"`
	IntentID string             `json:"intent_id"`
}

func (m *paymentMock) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (donation.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents++
	id := fmt.Sprintf("pi_test_%d", m.intents)
	return donation.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (m *paymentMock) ParseWebhook(payload []byte, signature string) (donation.Event, error) {
	if signature != validSignature {
		return donation.Event{}, errors.New("signature mismatch")
	}
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return donation.Event{}, errors.Wrap(err, "decoding payload")
	}
	return donation.Event{Type: p.Type, IntentID: p.IntentID}, nil
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a request against app and returns the recorder.
func do(app *Server, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// decode unmarshals the recorded body into v, failing the test on error.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
}
