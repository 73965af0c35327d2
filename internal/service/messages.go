package service

import (
	"fmt"

	"escrow-marketplace/internal/core/domain"
)

// Message is a notification body in English and Arabic.
type Message struct {
	EN string
	AR string
}

func money(minor int64) string {
	return domain.FormatAmount(minor)
}

func msgLowStock(p *domain.Product, stock int64) Message {
	return Message{
		EN: fmt.Sprintf("Low stock: %s has %d units left", p.NameEN, stock),
		AR: fmt.Sprintf("مخزون منخفض: تبقى %d وحدات من %s", stock, p.NameAR),
	}
}

func msgOrderCreated(o *domain.Order) Message {
	return Message{
		EN: fmt.Sprintf("Order %s placed for %s", o.Number, money(o.TotalAmount)),
		AR: fmt.Sprintf("تم إنشاء الطلب %s بمبلغ %s", o.Number, money(o.TotalAmount)),
	}
}

func msgOrderStatusChanged(o *domain.Order) Message {
	return Message{
		EN: fmt.Sprintf("Order %s is now %s", o.Number, o.Status),
		AR: fmt.Sprintf("حالة الطلب %s الآن %s", o.Number, o.Status),
	}
}

func msgOrderCompleted(o *domain.Order) Message {
	return Message{
		EN: fmt.Sprintf("Order %s is complete", o.Number),
		AR: fmt.Sprintf("اكتمل الطلب %s", o.Number),
	}
}

func msgOrderCancelled(o *domain.Order, refund, penalty int64) Message {
	return Message{
		EN: fmt.Sprintf("Order %s cancelled. Refund %s, cancellation fee %s", o.Number, money(refund), money(penalty)),
		AR: fmt.Sprintf("تم إلغاء الطلب %s. المبلغ المسترد %s ورسوم الإلغاء %s", o.Number, money(refund), money(penalty)),
	}
}

func msgOrderRefunded(o *domain.Order, refund int64) Message {
	return Message{
		EN: fmt.Sprintf("Order %s refunded: %s returned to your wallet", o.Number, money(refund)),
		AR: fmt.Sprintf("تم استرداد الطلب %s: أعيد %s إلى محفظتك", o.Number, money(refund)),
	}
}

func msgSellerPayment(o *domain.Order, net, fee int64) Message {
	return Message{
		EN: fmt.Sprintf("Payment of %s received for order %s (fee %s)", money(net), o.Number, money(fee)),
		AR: fmt.Sprintf("تم استلام دفعة بقيمة %s للطلب %s (العمولة %s)", money(net), o.Number, money(fee)),
	}
}

func msgSellerVerified() Message {
	return Message{
		EN: "Congratulations, you are now a verified seller",
		AR: "تهانينا، أصبحت الآن بائعا موثقا",
	}
}

func msgAuctionSubmitted(a *domain.Auction) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q submitted for review", a.Title),
		AR: fmt.Sprintf("تم إرسال المزاد %q للمراجعة", a.Title),
	}
}

func msgAuctionApproved(a *domain.Auction) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q approved, starts %s", a.Title, a.StartAt.Format("2006-01-02 15:04 MST")),
		AR: fmt.Sprintf("تمت الموافقة على المزاد %q ويبدأ %s", a.Title, a.StartAt.Format("2006-01-02 15:04 MST")),
	}
}

func msgAuctionRejected(a *domain.Auction, reason string) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q rejected: %s", a.Title, reason),
		AR: fmt.Sprintf("تم رفض المزاد %q: %s", a.Title, reason),
	}
}

func msgAuctionStarted(a *domain.Auction) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q is live", a.Title),
		AR: fmt.Sprintf("المزاد %q مباشر الآن", a.Title),
	}
}

func msgAuctionNewBid(a *domain.Auction, amount int64) Message {
	return Message{
		EN: fmt.Sprintf("New bid of %s on %q", money(amount), a.Title),
		AR: fmt.Sprintf("مزايدة جديدة بقيمة %s على %q", money(amount), a.Title),
	}
}

func msgAuctionOutbid(a *domain.Auction, amount int64) Message {
	return Message{
		EN: fmt.Sprintf("You were outbid on %q. Leading bid is %s", a.Title, money(amount)),
		AR: fmt.Sprintf("تم تجاوز مزايدتك على %q. أعلى مزايدة %s", a.Title, money(amount)),
	}
}

func msgAuctionWon(a *domain.Auction, amount int64, o *domain.Order) Message {
	return Message{
		EN: fmt.Sprintf("You won %q for %s. Order %s", a.Title, money(amount), o.Number),
		AR: fmt.Sprintf("فزت بالمزاد %q بمبلغ %s. الطلب %s", a.Title, money(amount), o.Number),
	}
}

func msgAuctionLost(a *domain.Auction) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q ended. Your hold has been released", a.Title),
		AR: fmt.Sprintf("انتهى المزاد %q. تم الإفراج عن المبلغ المحجوز", a.Title),
	}
}

func msgAuctionSold(a *domain.Auction, amount int64) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q sold for %s", a.Title, money(amount)),
		AR: fmt.Sprintf("تم بيع المزاد %q بمبلغ %s", a.Title, money(amount)),
	}
}

func msgAuctionNoSale(a *domain.Auction) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q ended without a sale", a.Title),
		AR: fmt.Sprintf("انتهى المزاد %q دون بيع", a.Title),
	}
}

func msgAuctionBought(a *domain.Auction, price int64, o *domain.Order) Message {
	return Message{
		EN: fmt.Sprintf("You bought %q for %s. Order %s", a.Title, money(price), o.Number),
		AR: fmt.Sprintf("اشتريت %q بمبلغ %s. الطلب %s", a.Title, money(price), o.Number),
	}
}

func msgAuctionSoldBuyNow(a *domain.Auction, price int64) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q sold at the buy-now price of %s", a.Title, money(price)),
		AR: fmt.Sprintf("تم بيع المزاد %q بسعر الشراء الفوري %s", a.Title, money(price)),
	}
}

func msgAuctionCancelled(a *domain.Auction) Message {
	return Message{
		EN: fmt.Sprintf("Auction %q was cancelled", a.Title),
		AR: fmt.Sprintf("تم إلغاء المزاد %q", a.Title),
	}
}

func msgReturnRequested(r *domain.ReturnRequest, o *domain.Order) Message {
	return Message{
		EN: fmt.Sprintf("Return of %d units requested on order %s", r.Quantity, o.Number),
		AR: fmt.Sprintf("طلب إرجاع %d وحدات من الطلب %s", r.Quantity, o.Number),
	}
}

func msgReturnInspected(r *domain.ReturnRequest) Message {
	return Message{
		EN: fmt.Sprintf("Your return of %d units has been inspected", r.Quantity),
		AR: fmt.Sprintf("تم فحص المرتجع الخاص بك (%d وحدات)", r.Quantity),
	}
}

func msgReturnNeedsApproval() Message {
	return Message{
		EN: "Returned units need your approval before resale",
		AR: "الوحدات المرتجعة بحاجة إلى موافقتك قبل إعادة البيع",
	}
}

func msgReturnApproved(refund int64) Message {
	return Message{
		EN: fmt.Sprintf("Return approved: %s refunded to your wallet", money(refund)),
		AR: fmt.Sprintf("تمت الموافقة على الإرجاع: أعيد %s إلى محفظتك", money(refund)),
	}
}

func msgReturnRejected(reason string) Message {
	return Message{
		EN: fmt.Sprintf("Return rejected: %s", reason),
		AR: fmt.Sprintf("تم رفض الإرجاع: %s", reason),
	}
}

func msgReturnSellerPenalty(refund, points int64) Message {
	return Message{
		EN: fmt.Sprintf("A return was settled: %s refunded, %d points deducted", money(refund), points),
		AR: fmt.Sprintf("تمت تسوية مرتجع: استرداد %s وخصم %d نقاط", money(refund), points),
	}
}

func msgReturnResaleDecision(rp *domain.ReturnedProduct) Message {
	return Message{
		EN: fmt.Sprintf("Resale of %d %s units %s", rp.Quantity, rp.Condition, rp.SellerApproval),
		AR: fmt.Sprintf("قرار إعادة بيع %d وحدات بحالة %s: %s", rp.Quantity, rp.Condition, rp.SellerApproval),
	}
}
