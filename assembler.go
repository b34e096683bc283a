package uasub

// countQueuedNotifications counts the values waiting in the subscription's
// monitored item queues, up to the per-publish maximum. moreNotifications
// is true when at least one queued value remained uncounted. A publishing
// disabled subscription reports zero pending notifications.
func countQueuedNotifications(sub *Subscription) (uint32, bool) {
	if !sub.publishingEnabled {
		return 0, false
	}

	maxPerPublish := sub.maxNotificationsPerPublish
	var notifications uint32
	moreNotifications := false

	for _, item := range sub.monitoredItems {
		queued := item.CurrentQueueSize()
		if maxPerPublish > 0 && notifications+queued > maxPerPublish {
			moreNotifications = true
			notifications = maxPerPublish
			break
		}
		notifications += queued
	}
	return notifications, moreNotifications
}

// prepareNotificationMessage builds one notification message embedding
// exactly notifications queued values, in the concatenated FIFO order of
// the monitored item queues. The destination array is fully allocated
// before the first value is removed from a queue; past that point the
// build cannot fail, so a removed value is always embedded in the message.
func prepareNotificationMessage(sub *Subscription, notifications uint32) (*NotificationMessage, StatusCode) {
	dcn := &DataChangeNotification{
		MonitoredItems: make([]MonitoredItemNotification, notifications),
	}
	message := &NotificationMessage{
		NotificationData: []*DataChangeNotification{dcn},
	}

	// Move notifications into the message .. the point of no return.
	var l uint32
	for _, item := range sub.monitoredItems {
		for l < notifications {
			qv, ok := item.dequeue()
			if !ok {
				break
			}
			dcn.MonitoredItems[l] = MonitoredItemNotification{
				ClientHandle: qv.ClientHandle,
				Value:        qv.Value,
			}
			l++
		}
		if l >= notifications {
			break
		}
	}
	dcn.MonitoredItems = dcn.MonitoredItems[:l]
	return message, Good
}
