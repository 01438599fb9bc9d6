package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		db          *BoltDB
		storage     *mockStorage
		structurer  *mockStructurer
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		storage = newMockStorage()
		structurer = &mockStructurer{response: cvsResponse}
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, &mockExtractor{text: "CVS"}, structurer, storage,
			&mockIDGenerator{}, &mockTimeSource{now: time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	scanned := func() *Analysis {
		a, err := service.Scan(context.Background(), "cvs.jpg", []byte("cvs"), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	approved := func() *Detail {
		detail, err := service.Approve(scanned().ID)
		Expect(err).NotTo(HaveOccurred())
		return detail
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	upload := func(filename, contentType string, data []byte) *http.Response {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := writer.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghttpServer.URL()+"/api/receipts/scan", writer.FormDataContentType(), &body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("handleScanReceipt", func() {
		It("should queue the upload and return the analysis", func() {
			resp := upload("cvs.jpg", "image/jpeg", []byte("cvs"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var a Analysis
			decode(resp, &a)
			Expect(a.ID).To(Equal("id-1"))
			Expect(a.Result.Receipt.Merchant.Name).To(Equal("Cvs Pharmacy"))
			Expect(service.Pending()).To(HaveLen(1))
		})

		It("should guess a missing content type from the file name", func() {
			resp := upload("scan.pdf", "", []byte("%PDF"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var a Analysis
			decode(resp, &a)
			Expect(a.ContentType).To(Equal("application/pdf"))
		})

		When("no file is sent", func() {
			It("should return a JSON error", func() {
				var body bytes.Buffer
				writer := multipart.NewWriter(&body)
				Expect(writer.WriteField("note", "hi")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/receipts/scan", writer.FormDataContentType(), &body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errBody map[string]string
				decode(resp, &errBody)
				Expect(errBody["error"]).To(ContainSubstring("No file was selected"))
			})
		})

		When("the file was already ingested", func() {
			It("should return Conflict", func() {
				approved()
				resp := upload("cvs.jpg", "image/jpeg", []byte("cvs"))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			})
		})

		When("the response cannot be analyzed", func() {
			BeforeEach(func() {
				structurer.response = "no receipt here"
			})

			It("should return the failed analysis", func() {
				resp := upload("cvs.jpg", "image/jpeg", []byte("cvs"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var body struct {
					Error    string   `json:"error"`
					Analysis Analysis `json:"analysis"`
				}
				decode(resp, &body)
				Expect(body.Error).To(ContainSubstring("no JSON object"))
				Expect(body.Analysis.Result.Confidence).To(BeEquivalentTo("failed"))
			})
		})
	})

	Describe("handleListAnalyses", func() {
		It("should return the pending analyses", func() {
			scanned()
			resp, err := http.Get(ghttpServer.URL() + "/api/analyses")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var analyses []*Analysis
			decode(resp, &analyses)
			Expect(analyses).To(HaveLen(1))
		})

		It("should return an empty array when nothing is pending", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/analyses")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("[]\n"))
		})
	})

	Describe("handleGetAnalysis", func() {
		It("should return 404 for an unknown id", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/analyses/nope")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleApproveAnalysis", func() {
		It("should save the receipt", func() {
			a := scanned()
			resp, err := http.Post(ghttpServer.URL()+"/api/analyses/"+a.ID+"/approve", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var detail Detail
			decode(resp, &detail)
			Expect(detail.Receipt.ID).To(BeNumerically(">", 0))
			Expect(detail.Items).To(HaveLen(1))
			Expect(service.Pending()).To(BeEmpty())
		})

		It("should return 404 for an unknown id", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/analyses/nope/approve", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleRejectAnalysis", func() {
		It("should discard the analysis", func() {
			a := scanned()
			resp, err := http.Post(ghttpServer.URL()+"/api/analyses/"+a.ID+"/reject", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(service.Pending()).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})
	})

	Describe("handleGetReceipt", func() {
		It("should return the receipt with merchant and items", func() {
			detail := approved()
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got Detail
			decode(resp, &got)
			Expect(got.Receipt.ID).To(Equal(detail.Receipt.ID))
			Expect(got.Merchant.Name).To(Equal("Cvs Pharmacy"))
		})

		It("should return 404 for a missing receipt", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/7")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return 400 for a malformed id", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/abc")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleGetReceiptFile", func() {
		It("should return the stored file with its content type", func() {
			approved()
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
			body, _ := io.ReadAll(resp.Body)
			Expect(body).To(Equal([]byte("cvs")))
		})
	})

	Describe("handleListCategories", func() {
		It("should return the seeded categories", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/categories")
			Expect(err).NotTo(HaveOccurred())
			var categories []*Category
			decode(resp, &categories)
			Expect(categories).To(HaveLen(11))
		})
	})

	Describe("handleListMerchants", func() {
		It("should return stored merchants", func() {
			approved()
			resp, err := http.Get(ghttpServer.URL() + "/api/merchants")
			Expect(err).NotTo(HaveOccurred())
			var merchants []*Merchant
			decode(resp, &merchants)
			Expect(merchants).To(HaveLen(1))
			Expect(merchants[0].City).To(Equal("Austin"))
		})
	})

	Describe("handleSummary", func() {
		It("should return database statistics", func() {
			approved()
			resp, err := http.Get(ghttpServer.URL() + "/api/summary")
			Expect(err).NotTo(HaveOccurred())
			var summary Summary
			decode(resp, &summary)
			Expect(summary.Receipts).To(Equal(1))
			Expect(summary.TotalSpending).To(Equal(10.80))
			Expect(summary.TopLocations).To(HaveLen(1))
		})
	})

	Describe("handleExport", func() {
		It("should return an XLSX attachment", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/export")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(xlsxContentType))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("receipts.xlsx"))
			body, _ := io.ReadAll(resp.Body)
			Expect(body[:2]).To(Equal([]byte("PK")))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject a wrong password", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Handler", func() {
		It("should answer preflight requests with CORS headers", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/receipts", nil)
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
